// internal/workers/matching/rank-startup-matches/config.go
package rankstartupmatches

import (
	"time"

	"investlink-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	Index        string
	SearchSize   int
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig(wc config.WorkerConfig, es config.ElasticsearchConfig) *Config {
	cfg := &Config{
		Timeout:      config.GetDuration(wc.Timeout),
		Index:        es.StartupIndex,
		SearchSize:   100,
		DefaultLimit: 10,
		MaxLimit:     50,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Index == "" {
		cfg.Index = "startups"
	}
	return cfg
}

// limitFor clamps a requested limit into [1, MaxLimit].
func (c *Config) limitFor(requested int) int {
	switch {
	case requested <= 0:
		return c.DefaultLimit
	case requested > c.MaxLimit:
		return c.MaxLimit
	default:
		return requested
	}
}
