package conversationhistory

import "time"

type Config struct {
	MaxHistory int
	TTL        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxHistory: 10,
		TTL:        24 * time.Hour,
	}
}
