// internal/workers/matching/get-smart-match/config.go
package getsmartmatch

import (
	"time"

	"investlink-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{Timeout: config.GetDuration(wc.Timeout)}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
