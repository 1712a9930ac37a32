// internal/workers/matching/record-ai-match/models.go
package recordaimatch

import (
	"time"

	"investlink-workers/internal/models"
)

type Input struct {
	InvestorID  string              `json:"investorId"`
	StartupID   string              `json:"startupId"`
	MatchResult *models.MatchResult `json:"matchResult"`
}

type Output struct {
	MatchRecordID string    `json:"matchRecordId"`
	Created       bool      `json:"created"`
	RecordedAt    time.Time `json:"recordedAt"`
}
