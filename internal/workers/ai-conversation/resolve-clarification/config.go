package resolveclarification

import "time"

type Config struct {
	MaxAttempts  int
	TTL          time.Duration
	Timeout      time.Duration
	MaxTokens    int
	DefaultQuery string
	Now          func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		MaxAttempts:  2,
		TTL:          24 * time.Hour,
		Timeout:      20 * time.Second,
		MaxTokens:    400,
		DefaultQuery: "get_active_care_stays_now",
		Now:          time.Now,
	}
}
