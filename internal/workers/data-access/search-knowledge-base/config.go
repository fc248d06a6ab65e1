package searchknowledgebase

import "time"

type Config struct {
	TopK    int
	Timeout time.Duration
	// MaxPassageChars trims each passage before it reaches the synthesizer prompt.
	MaxPassageChars int
}

func LoadConfig() *Config {
	return &Config{
		TopK:            4,
		Timeout:         10 * time.Second,
		MaxPassageChars: 2000,
	}
}
