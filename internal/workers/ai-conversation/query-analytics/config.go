package queryanalytics

import (
	"time"

	"insight-agents/internal/common/config"
)

type Config struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	DefaultLimit     int
	MaxLimit         int
	DefaultStartDate string
	DefaultEndDate   string
	// Now supplies today's date for the planning prompt.
	Now func() time.Time
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.PlannerTemperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		DefaultLimit:     cfg.Analytics.DefaultLimit,
		MaxLimit:         cfg.Analytics.MaxLimit,
		DefaultStartDate: cfg.Analytics.DefaultStartDate,
		DefaultEndDate:   cfg.Analytics.DefaultEndDate,
		Now:              time.Now,
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.DefaultStartDate == "" {
		c.DefaultStartDate = "7daysAgo"
	}
	if c.DefaultEndDate == "" {
		c.DefaultEndDate = "today"
	}
	return c
}
