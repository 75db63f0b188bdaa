package config

import (
	"encoding/json"
)

// Config represents the main memoir configuration
type Config struct {
	// Data directory; holds the database, logs and PID file
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway HTTP/WebSocket surface
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Search behavior
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Vector similarity index
	Vector VectorConfig `json:"vector" mapstructure:"vector"`

	// Summarizer turning queued events into observations
	Summarizer SummarizerConfig `json:"summarizer" mapstructure:"summarizer"`

	// Janitor maintenance schedule
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds the HTTP/WebSocket server configuration
type GatewayConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	SharedSecret    string `json:"shared_secret" mapstructure:"shared_secret"`
	RateLimitPerMin int    `json:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
}

// SearchConfig holds hybrid search configuration
type SearchConfig struct {
	// Per-strategy merge weights; equal weights when empty
	Weights map[string]float64 `json:"weights" mapstructure:"weights"`

	// Per-strategy timeout in milliseconds
	StrategyTimeoutMS int `json:"strategy_timeout_ms" mapstructure:"strategy_timeout_ms"`

	// Snippet length in runes
	SnippetLength int `json:"snippet_length" mapstructure:"snippet_length"`

	// Default result limit when a query does not specify one
	DefaultLimit int `json:"default_limit" mapstructure:"default_limit"`
}

// VectorConfig holds similarity index configuration
type VectorConfig struct {
	// Index backend: sqlitevec, chromem, or disabled
	Index string `json:"index" mapstructure:"index"`

	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	CacheSize int64  `json:"cache_size" mapstructure:"cache_size"` // bytes
}

// SummarizerConfig holds observation summarizer configuration
type SummarizerConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // heuristic, anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// JanitorConfig holds maintenance configuration
type JanitorConfig struct {
	Schedule          string `json:"schedule" mapstructure:"schedule"` // cron expression or @every descriptor
	StaleAfterMinutes int    `json:"stale_after_minutes" mapstructure:"stale_after_minutes"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host:            "127.0.0.1",
			Port:            8377,
			SharedSecret:    "",
			RateLimitPerMin: 120,
		},
		Search: SearchConfig{
			Weights:           map[string]float64{},
			StrategyTimeoutMS: 5000,
			SnippetLength:     200,
			DefaultLimit:      10,
		},
		Vector: VectorConfig{
			Index: "disabled",
			Embedding: EmbeddingConfig{
				Provider:  "openai",
				Model:     "text-embedding-3-small",
				CacheSize: 64 * 1024 * 1024,
			},
		},
		Summarizer: SummarizerConfig{
			Provider: "heuristic",
		},
		Janitor: JanitorConfig{
			Schedule:          "@every 5m",
			StaleAfterMinutes: 120,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
