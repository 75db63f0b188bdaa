package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

var validVectorIndexes = []string{"sqlitevec", "chromem", "disabled"}

var validSummarizers = []string{"heuristic", "anthropic", "openai"}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway: invalid port %d", c.Gateway.Port)
	}
	if c.Gateway.RateLimitPerMin < 0 {
		return fmt.Errorf("gateway: rate_limit_per_min must not be negative")
	}

	if c.Search.StrategyTimeoutMS <= 0 {
		return fmt.Errorf("search: strategy_timeout_ms must be positive")
	}
	if c.Search.SnippetLength <= 0 {
		return fmt.Errorf("search: snippet_length must be positive")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search: default_limit must be positive")
	}
	for name, w := range c.Search.Weights {
		if w < 0 {
			return fmt.Errorf("search: weight for strategy %s must not be negative", name)
		}
	}

	if !contains(validVectorIndexes, c.Vector.Index) {
		return fmt.Errorf("vector: invalid index %q (must be: sqlitevec, chromem, disabled)", c.Vector.Index)
	}
	if c.Vector.Index != "disabled" {
		if c.Vector.Embedding.Provider != "openai" {
			return fmt.Errorf("vector: invalid embedding provider %q", c.Vector.Embedding.Provider)
		}
		if c.Vector.Embedding.APIKey == "" {
			return fmt.Errorf("vector: embedding api_key is required when the %s index is enabled", c.Vector.Index)
		}
	}

	if !contains(validSummarizers, c.Summarizer.Provider) {
		return fmt.Errorf("summarizer: invalid provider %q (must be: heuristic, anthropic, openai)", c.Summarizer.Provider)
	}
	if c.Summarizer.Provider != "heuristic" && c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer: api_key is required for provider %s", c.Summarizer.Provider)
	}

	if c.Janitor.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Janitor.Schedule); err != nil {
			return fmt.Errorf("janitor: invalid schedule %q: %w", c.Janitor.Schedule, err)
		}
	}
	if c.Janitor.StaleAfterMinutes < 0 {
		return fmt.Errorf("janitor: stale_after_minutes must not be negative")
	}

	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
