package tune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/domain"
)

func TestParamRangeCandidates(t *testing.T) {
	r := ParamRange{Min: 1.0, Max: 2.5, Step: 0.5}
	assert.Equal(t, []float64{1.0, 1.5, 2.0, 2.5}, r.Candidates())

	explicit := ParamRange{Values: []float64{0.3, 0.7}}
	assert.Equal(t, []float64{0.3, 0.7}, explicit.Candidates())

	assert.Nil(t, ParamRange{Min: 1, Max: 0, Step: 1}.Candidates())
	assert.Nil(t, ParamRange{Min: 1, Max: 2}.Candidates())
}

func TestSpaceSizeAndNames(t *testing.T) {
	s := DefaultSpace()
	// 4 stop levels x 3 take levels x 4 confidence levels.
	assert.Equal(t, 48, s.Size())
	assert.Equal(t, []string{"min_confidence", "stop_loss_atr", "take_profit_atr"}, s.Names())
}

func TestEnumerateDerivesFromBase(t *testing.T) {
	s := Space{
		"stop_loss_atr":  {Values: []float64{1.0, 2.0}},
		"min_confidence": {Values: []float64{0.5, 0.6, 0.7}},
	}
	base := domain.DefaultStrategyConfig("BTCUSD")

	configs, err := s.Enumerate(base)
	require.NoError(t, err)
	require.Len(t, configs, 6)

	seen := make(map[string]bool)
	for _, cfg := range configs {
		assert.Equal(t, base.ID, cfg.DerivedFrom)
		assert.Equal(t, base.Version+1, cfg.Version)
		assert.NoError(t, cfg.Validate())
		seen[cfg.Fingerprint()] = true
	}
	assert.Len(t, seen, 6, "every combination is distinct")
}

func TestEnumerateEmptyParamFails(t *testing.T) {
	s := Space{"stop_loss_atr": {Min: 2, Max: 1, Step: 1}}
	_, err := s.Enumerate(domain.DefaultStrategyConfig("BTCUSD"))
	assert.Error(t, err)
}

func TestApplyParamRoundTrip(t *testing.T) {
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	for _, name := range []string{
		"rsi_oversold", "rsi_overbought", "adx_min",
		"stop_loss_atr", "take_profit_atr", "min_confidence", "risk_per_trade",
	} {
		require.NoError(t, applyParam(&cfg, name, 0.42))
		assert.Equal(t, 0.42, paramValue(cfg, name), name)
	}
	assert.Error(t, applyParam(&cfg, "leverage", 2))
}
