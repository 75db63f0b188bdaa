package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8377, cfg.Gateway.Port)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, "disabled", cfg.Vector.Index)
	assert.Equal(t, "heuristic", cfg.Summarizer.Provider)
	assert.Equal(t, "@every 5m", cfg.Janitor.Schedule)
	assert.Equal(t, 5000, cfg.Search.StrategyTimeoutMS)
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Port = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestValidate_InvalidVectorIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vector.Index = "pinecone"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid index")
}

func TestValidate_VectorEnabledRequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vector.Index = "sqlitevec"
	cfg.Vector.Embedding.APIKey = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")

	cfg.Vector.Embedding.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SummarizerRequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Summarizer.Provider = "anthropic"

	err := cfg.Validate()
	assert.Error(t, err)

	cfg.Summarizer.APIKey = "sk-ant-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidJanitorSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Janitor.Schedule = "not a schedule"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Weights = map[string]float64{"lexical": -1}

	assert.Error(t, cfg.Validate())
}
