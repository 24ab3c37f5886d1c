package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 1, cfg.RetryCount)
	assert.Equal(t, 0.84, cfg.FuzzyAcceptThreshold)
	assert.Equal(t, int64(4096), cfg.MaxOutputTokens)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestLoadRejectsBadRates(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INPUT_RATE_PER_MTOK", "three dollars")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FUZZY_ACCEPT_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
}

func TestRatesArePerToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INPUT_RATE_PER_MTOK", "3.00")
	t.Setenv("OUTPUT_RATE_PER_MTOK", "15.00")
	t.Setenv("SEARCH_RATE", "0.01")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.InputRate().Equal(decimal.RequireFromString("0.000003")),
		"got %s", cfg.InputRate())
	assert.True(t, cfg.OutputRate().Equal(decimal.RequireFromString("0.000015")),
		"got %s", cfg.OutputRate())
	assert.True(t, cfg.SearchRequestRate().Equal(decimal.RequireFromString("0.01")))
}
