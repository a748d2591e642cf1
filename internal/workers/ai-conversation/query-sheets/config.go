package querysheets

import (
	"time"

	"insight-agents/internal/common/config"
)

type Config struct {
	Model                string
	Temperature          float64
	MaxTokens            int
	DefaultSpreadsheetID string
	SampleRows           int
	CacheTTL             time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Model:                cfg.LLM.Model,
		Temperature:          cfg.LLM.SheetsPlannerTemperature,
		MaxTokens:            cfg.LLM.MaxTokens,
		DefaultSpreadsheetID: cfg.Google.DefaultSpreadsheetID,
		SampleRows:           3,
		CacheTTL:             config.GetDuration(cfg.Cache.SheetTTL),
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}
