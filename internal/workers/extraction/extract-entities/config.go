package extractentities

import (
	"time"

	"care-assistant/internal/common/config"
)

type Config struct {
	KnownAgencies []string
	LLMTimeout    time.Duration
	MaxTokens     int
	// MaxParams bounds how many missing parameters one LLM pass may ask for.
	MaxParams int
}

func LoadConfig() *Config {
	return &Config{
		KnownAgencies: config.DefaultKnownAgencies(),
		LLMTimeout:    15 * time.Second,
		MaxTokens:     300,
		MaxParams:     6,
	}
}
