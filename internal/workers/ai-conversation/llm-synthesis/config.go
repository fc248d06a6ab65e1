// internal/workers/ai-conversation/llm-synthesis/config.go
package llmsynthesis

import "time"

type Config struct {
	PromptsPath  string
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float64
	HistoryTurns int
	// AppendixRows caps the rows handed to the model; the count is always exact.
	AppendixRows int
	Now          func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		PromptsPath:  "configs/prompts.yaml",
		Timeout:      45 * time.Second,
		MaxTokens:    1200,
		Temperature:  0.2,
		HistoryTurns: 3,
		AppendixRows: 50,
		Now:          time.Now,
	}
}
