package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500.0, cfg.StartingBalance)
	assert.Equal(t, 2.0, cfg.DailyFee)
	assert.Equal(t, 120, cfg.MaxDays)
	assert.Equal(t, 2000, cfg.MaxMessages)
	assert.Equal(t, 40, cfg.SubAgentMaxMessages)
	assert.Equal(t, 30000, cfg.ContextBudget)
	assert.Equal(t, 10, cfg.BankruptcyGraceDays)
	assert.Equal(t, 12, cfg.SupplierLatencyHrs)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VENDBENCH_STARTING_BALANCE", "250")
	t.Setenv("VENDBENCH_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250.0, cfg.StartingBalance)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestValidate(t *testing.T) {
	base := Config{DailyFee: 2, MaxDays: 120, MaxMessages: 2000, BankruptcyGraceDays: 10}
	require.NoError(t, base.validate())

	bad := base
	bad.DailyFee = -1
	assert.Error(t, bad.validate())

	bad = base
	bad.MaxDays = 0
	assert.Error(t, bad.validate())

	bad = base
	bad.MaxMessages = 0
	assert.Error(t, bad.validate())

	bad = base
	bad.BankruptcyGraceDays = 0
	assert.Error(t, bad.validate())
}
