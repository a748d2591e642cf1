package classifyintent

import "insight-agents/internal/common/config"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	SEOKeywords []string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.ClassifierTemperature,
		MaxTokens:   10,
		SEOKeywords: cfg.Classifier.SEOKeywords,
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if len(c.SEOKeywords) == 0 {
		c.SEOKeywords = config.DefaultSEOKeywords
	}
	return c
}
