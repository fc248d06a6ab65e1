package routequery

import "time"

type Config struct {
	ConfidenceFloor float64
	// HistoryTurns is how many recent turns the classifier sees.
	HistoryTurns int
	Timeout      time.Duration
	MaxTokens    int
	Now          func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		ConfidenceFloor: 0.4,
		HistoryTurns:    3,
		Timeout:         20 * time.Second,
		MaxTokens:       200,
		Now:             time.Now,
	}
}
