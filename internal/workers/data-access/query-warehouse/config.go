// internal/workers/data-access/query-warehouse/config.go
package querywarehouse

import "time"

type Config struct {
	Timeout time.Duration
	RowCap  int
	// Now is the clock used for date fallbacks.
	Now func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		RowCap:  5000,
		Now:     time.Now,
	}
}
