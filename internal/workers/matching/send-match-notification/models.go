// internal/workers/matching/send-match-notification/models.go
package sendmatchnotification

import (
	"time"

	"investlink-workers/internal/models"
)

type Input struct {
	InvestorID    string              `json:"investorId"`
	InvestorEmail string              `json:"investorEmail,omitempty"`
	InvestorName  string              `json:"investorName,omitempty"`
	StartupID     string              `json:"startupId"`
	StartupName   string              `json:"startupName,omitempty"`
	MatchResult   *models.MatchResult `json:"matchResult"`
	Force         bool                `json:"force,omitempty"`
}

type Output struct {
	NotificationID string    `json:"notificationId"`
	Status         string    `json:"status"`
	Channels       []string  `json:"channels"`
	SentAt         time.Time `json:"sentAt"`
}

const (
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"

	ChannelEmail = "email"
	ChannelEvent = "event"
)

// MatchEvent is the SNS message body for a recommended match.
type MatchEvent struct {
	EventType      string              `json:"eventType"`
	NotificationID string              `json:"notificationId"`
	InvestorID     string              `json:"investorId"`
	StartupID      string              `json:"startupId"`
	StartupName    string              `json:"startupName,omitempty"`
	MatchResult    *models.MatchResult `json:"matchResult"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

const EventTypeMatchRecommended = "smart_match.recommended"
