package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("PG_DSN", "postgres://localhost/planner")
	t.Setenv("TZ", "America/Sao_Paulo")

	cfg := Load()

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Generation.HistoryLimit)
	assert.InDelta(t, 0.8, cfg.LLM.Temperature, 1e-9)
	assert.False(t, cfg.LLM.JSONMode)
	assert.Zero(t, cfg.LLM.MaxTokens)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
}

func TestValidateRequiresProviderKey(t *testing.T) {
	var cfg AppConfig
	cfg.TZ = "UTC"
	cfg.Store.Driver = StoreDriverSQLite
	cfg.Store.SQLitePath = "planner.db"
	cfg.Generation.HistoryLimit = 50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")

	cfg.LLM.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	var cfg AppConfig
	cfg.TZ = "UTC"
	cfg.LLM.APIKey = "key"
	cfg.Store.Driver = "mongo"
	cfg.Generation.HistoryLimit = 50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoadProviderOutputLimits(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_JSON_MODE", "true")
	t.Setenv("LLM_MAX_TOKENS", "4096")

	cfg := Load()

	assert.True(t, cfg.LLM.JSONMode)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
}
