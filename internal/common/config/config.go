// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Camunda       CamundaConfig       `mapstructure:"camunda"`
	Database      DatabaseConfig      `mapstructure:"database"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds
}

// CamundaConfig controls the optional answer-question job worker.
type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	TaskType       string `mapstructure:"task_type"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LLMConfig selects and tunes the language model provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // anthropic | genai
	Model       string  `mapstructure:"model"`
	FastModel   string  `mapstructure:"fast_model"` // router, selector, extraction
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// PipelineConfig carries the routing and resolution tunables.
type PipelineConfig struct {
	MaxHistory                     int      `mapstructure:"max_history"`
	RouterConfidenceFloor          float64  `mapstructure:"router_confidence_floor"`
	SelectorClarificationThreshold int      `mapstructure:"selector_clarification_threshold"`
	ClarificationMaxAttempts       int      `mapstructure:"clarification_max_attempts"`
	ResultRowCap                   int      `mapstructure:"result_row_cap"`
	KnownAgencies                  []string `mapstructure:"known_agencies"`
	DefaultQuery                   string   `mapstructure:"default_query"`
	StreamChunkWords               int      `mapstructure:"stream_chunk_words"`
	SessionTTL                     int      `mapstructure:"session_ttl"` // seconds
	CatalogPath                    string   `mapstructure:"catalog_path"`
	PromptsPath                    string   `mapstructure:"prompts_path"`
	FeedbackEnabled                bool     `mapstructure:"feedback_enabled"`
}

// KnowledgeBaseConfig selects the retrieval backend used for knowledge_base turns.
type KnowledgeBaseConfig struct {
	Backend        string `mapstructure:"backend"` // chromem | elasticsearch
	Path           string `mapstructure:"path"`
	Collection     string `mapstructure:"collection"`
	Index          string `mapstructure:"index"`
	TopK           int    `mapstructure:"top_k"`
	EmbeddingURL   string `mapstructure:"embedding_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbeddingKey   string `mapstructure:"embedding_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// SessionTTLDuration returns the redis expiry applied to history and clarification keys.
func (p PipelineConfig) SessionTTLDuration() time.Duration {
	return time.Duration(p.SessionTTL) * time.Second
}
