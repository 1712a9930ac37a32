// internal/workers/matching/get-smart-match/models.go
package getsmartmatch

import "investlink-workers/internal/models"

// Input identifies the pair to score. Inline profile data wins over a stored
// profile; the id is then only carried through to the output.
type Input struct {
	InvestorID string                 `json:"investorId"`
	StartupID  string                 `json:"startupId"`
	Investor   map[string]interface{} `json:"investor,omitempty"`
	Startup    map[string]interface{} `json:"startup,omitempty"`
}

type Output struct {
	InvestorID    string              `json:"investorId,omitempty"`
	StartupID     string              `json:"startupId,omitempty"`
	InvestorName  string              `json:"investorName,omitempty"`
	InvestorEmail string              `json:"investorEmail,omitempty"`
	StartupName   string              `json:"startupName,omitempty"`
	MatchResult   *models.MatchResult `json:"matchResult"`
}
