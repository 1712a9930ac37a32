// internal/workers/matching/rank-startup-matches/models.go
package rankstartupmatches

import "investlink-workers/internal/models"

// Input names the investor by id or inline data. Without inline startups the
// candidates are searched for.
type Input struct {
	InvestorID string                 `json:"investorId"`
	Investor   map[string]interface{} `json:"investor,omitempty"`
	Startups   []StartupInput         `json:"startups,omitempty"`
	Limit      int                    `json:"limit"`
}

type StartupInput struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name,omitempty"`
	Profile map[string]interface{} `json:"profile"`
}

type Output struct {
	InvestorID string               `json:"investorId,omitempty"`
	Matches    []models.RankedMatch `json:"matches"`
	Total      int                  `json:"total"`
	Source     string               `json:"source"`
}

const (
	SourceInline = "inline"
	SourceSearch = "search"
)
