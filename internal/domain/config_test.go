package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategyConfigValid(t *testing.T) {
	cfg := DefaultStrategyConfig("BTCUSD")
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, 1, cfg.Version)
	assert.Empty(t, cfg.DerivedFrom)
}

func TestStrategyConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StrategyConfig)
	}{
		{"confidence above one", func(c *StrategyConfig) { c.MinConfidence = 1.5 }},
		{"negative confidence", func(c *StrategyConfig) { c.MinConfidence = -0.1 }},
		{"zero stop multiplier", func(c *StrategyConfig) { c.StopLossATR = 0 }},
		{"zero take multiplier", func(c *StrategyConfig) { c.TakeProfitATR = 0 }},
		{"risk above one", func(c *StrategyConfig) { c.RiskPerTrade = 1.2 }},
		{"zero max positions", func(c *StrategyConfig) { c.MaxOpenPositions = 0 }},
		{"notional sizing without notional", func(c *StrategyConfig) {
			c.SizingMode = SizeNotional
			c.NotionalPerTrade = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStrategyConfig("BTCUSD")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDeriveLineage(t *testing.T) {
	base := DefaultStrategyConfig("BTCUSD")
	next := base.Derive(func(c *StrategyConfig) { c.StopLossATR = 2.0 })

	assert.NotEqual(t, base.ID, next.ID)
	assert.Equal(t, base.ID, next.DerivedFrom)
	assert.Equal(t, base.Version+1, next.Version)
	assert.Equal(t, 2.0, next.StopLossATR)
	// The parent is untouched.
	assert.Equal(t, 1.5, base.StopLossATR)
}

func TestFingerprintIgnoresIdentity(t *testing.T) {
	base := DefaultStrategyConfig("BTCUSD")
	same := base.Derive(nil) // new identity, same tunables
	assert.True(t, base.Equal(same))

	changed := base.Derive(func(c *StrategyConfig) { c.MinConfidence = 0.7 })
	assert.False(t, base.Equal(changed))
}
