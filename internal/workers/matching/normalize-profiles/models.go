// internal/workers/matching/normalize-profiles/models.go
package normalizeprofiles

import "investlink-workers/internal/models"

// Input carries the sparse profile maps as submitted by the forms. Either
// side may be omitted.
type Input struct {
	InvestorData map[string]interface{} `json:"investorData"`
	StartupData  map[string]interface{} `json:"startupData"`
}

type Output struct {
	Investor *models.InvestorProfile `json:"investor,omitempty"`
	Startup  *models.StartupProfile  `json:"startup,omitempty"`
}
