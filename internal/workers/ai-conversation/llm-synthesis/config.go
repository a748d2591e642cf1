package llmsynthesis

import "insight-agents/internal/common/config"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// MaxPayloadChars bounds the JSON result embedded in explanation prompts.
	MaxPayloadChars int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.ExplainTemperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		MaxPayloadChars: 12000,
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	return c
}
