// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if secrets are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("GENAI_API_KEY")
		}
	}
	if cfg.KnowledgeBase.EmbeddingKey == "" {
		cfg.KnowledgeBase.EmbeddingKey = os.Getenv("EMBEDDING_API_KEY")
	}
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "care-assistant"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120000
	}

	if cfg.Camunda.TaskType == "" {
		cfg.Camunda.TaskType = "answer-question"
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 120000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.QueryTimeout == 0 {
		cfg.Database.Postgres.QueryTimeout = 30000
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "qrrp:"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-5"
	}
	if cfg.LLM.FastModel == "" {
		cfg.LLM.FastModel = cfg.LLM.Model
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1500
	}

	p := &cfg.Pipeline
	if p.MaxHistory == 0 {
		p.MaxHistory = 10
	}
	if p.RouterConfidenceFloor == 0 {
		p.RouterConfidenceFloor = 0.4
	}
	if p.SelectorClarificationThreshold == 0 {
		p.SelectorClarificationThreshold = 3
	}
	if p.ClarificationMaxAttempts == 0 {
		p.ClarificationMaxAttempts = 2
	}
	if p.ResultRowCap == 0 {
		p.ResultRowCap = 5000
	}
	if len(p.KnownAgencies) == 0 {
		p.KnownAgencies = DefaultKnownAgencies()
	}
	if p.DefaultQuery == "" {
		p.DefaultQuery = "get_active_care_stays_now"
	}
	if p.StreamChunkWords == 0 {
		p.StreamChunkWords = 15
	}
	if p.SessionTTL == 0 {
		p.SessionTTL = 24 * 60 * 60
	}
	if p.CatalogPath == "" {
		p.CatalogPath = "configs/queries.yaml"
	}
	if p.PromptsPath == "" {
		p.PromptsPath = "configs/prompts.yaml"
	}

	kb := &cfg.KnowledgeBase
	if kb.Backend == "" {
		kb.Backend = "chromem"
	}
	if kb.Path == "" {
		kb.Path = "data/knowledge"
	}
	if kb.Collection == "" {
		kb.Collection = "wissensbasis"
	}
	if kb.Index == "" {
		kb.Index = "wissensbasis"
	}
	if kb.TopK == 0 {
		kb.TopK = 4
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// DefaultKnownAgencies is the closed list used for fast agency recognition.
func DefaultKnownAgencies() []string {
	return []string{
		"senioport", "medipe", "promedica", "aterima", "pflegehelden",
		"felizajob", "polonia", "carema", "advitum", "care-work",
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.LLM.Provider {
	case "anthropic", "genai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or genai, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == "genai" && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for the genai provider")
	}

	switch cfg.KnowledgeBase.Backend {
	case "chromem":
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch knowledge base")
		}
	default:
		return fmt.Errorf("knowledge_base.backend must be chromem or elasticsearch, got %q", cfg.KnowledgeBase.Backend)
	}

	p := cfg.Pipeline
	if p.RouterConfidenceFloor < 0 || p.RouterConfidenceFloor > 1 {
		return fmt.Errorf("pipeline.router_confidence_floor must be within [0,1]")
	}
	if p.SelectorClarificationThreshold < 1 || p.SelectorClarificationThreshold > 5 {
		return fmt.Errorf("pipeline.selector_clarification_threshold must be within 1..5")
	}
	if p.ResultRowCap < 1 {
		return fmt.Errorf("pipeline.result_row_cap must be positive")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is set")
	}

	return nil
}
