// internal/workers/matching/send-match-notification/config.go
package sendmatchnotification

import (
	"time"

	"investlink-workers/internal/common/config"
)

type Config struct {
	EmailEnabled  bool
	FromEmail     string
	EventsEnabled bool
	TopicARN      string
	Timeout       time.Duration
}

func LoadConfig(wc config.WorkerConfig, nc config.NotificationConfig) *Config {
	cfg := &Config{
		EmailEnabled:  nc.Email.Enabled,
		FromEmail:     nc.Email.FromEmail,
		EventsEnabled: nc.Events.Enabled,
		TopicARN:      nc.Events.TopicARN,
		Timeout:       config.GetDuration(wc.Timeout),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
