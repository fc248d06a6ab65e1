// internal/workers/data-access/query-catalog/config.go
package querycatalog

type Config struct {
	Path string
}

func LoadConfig() *Config {
	return &Config{
		Path: "configs/queries.yaml",
	}
}
