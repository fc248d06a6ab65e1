package selectquery

import "time"

type Config struct {
	// ClarificationThreshold: selections with a lower confidence (1..5) ask back.
	ClarificationThreshold int
	DefaultQuery           string
	HistoryTurns           int
	Timeout                time.Duration
	MaxTokens              int
	Now                    func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		ClarificationThreshold: 3,
		DefaultQuery:           "get_active_care_stays_now",
		HistoryTurns:           4,
		Timeout:                30 * time.Second,
		MaxTokens:              600,
		Now:                    time.Now,
	}
}
