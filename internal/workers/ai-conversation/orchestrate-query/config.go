package orchestratequery

import (
	"time"

	"insight-agents/internal/common/config"
)

type Config struct {
	// Timeout bounds one zeebe job.
	Timeout        time.Duration
	HistoryTimeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:        config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
		HistoryTimeout: 3 * time.Second,
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}
