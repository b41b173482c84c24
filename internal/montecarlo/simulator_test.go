package montecarlo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/domain"
)

func tradesFromPcts(pcts ...float64) []domain.SimulatedTrade {
	out := make([]domain.SimulatedTrade, len(pcts))
	for i, p := range pcts {
		out[i] = domain.SimulatedTrade{Symbol: "BTCUSD", PnLPct: p}
	}
	return out
}

func testCfg() Config {
	cfg := DefaultConfig()
	cfg.NRuns = 500
	cfg.Workers = 3
	cfg.Seed = 7
	return cfg
}

func TestSimulateReproducibleForFixedSeed(t *testing.T) {
	trades := tradesFromPcts(2, -1, 3, -0.5, 1.5, -2, 0.8)

	a, err := Simulate(trades, testCfg())
	require.NoError(t, err)
	b, err := Simulate(trades, testCfg())
	require.NoError(t, err)

	assert.Equal(t, a.Trials, b.Trials)
	assert.Equal(t, a.TerminalEquity, b.TerminalEquity)
	assert.Equal(t, a.MaxDrawdown, b.MaxDrawdown)
	assert.Equal(t, a.RuinProbability, b.RuinProbability)
}

func TestSimulateSeedChangesBootstrapDraws(t *testing.T) {
	trades := tradesFromPcts(2, -1, 3, -0.5, 1.5, -2, 0.8)

	a, err := Simulate(trades, testCfg())
	require.NoError(t, err)
	other := testCfg()
	other.Seed = 8
	b, err := Simulate(trades, other)
	require.NoError(t, err)

	assert.NotEqual(t, a.Trials, b.Trials)
}

func TestShuffleTerminalEquityIsPermutationInvariant(t *testing.T) {
	trades := tradesFromPcts(10, -5, 4, -2, 7)
	cfg := testCfg()
	cfg.Method = Shuffle
	cfg.NRuns = 200

	expected := cfg.InitialCapital
	for _, tr := range trades {
		expected *= 1 + tr.PnLPct/100
	}

	sim, err := Simulate(trades, cfg)
	require.NoError(t, err)
	for _, trial := range sim.Trials {
		assert.InDelta(t, expected, trial.TerminalEquity, 1e-6)
	}
	assert.InDelta(t, expected, sim.TerminalEquity.P50, 1e-6)
}

func TestRuinProbabilityZeroForBoundedLosses(t *testing.T) {
	// Three +10% winners, seven -5% losers: equity can never reach zero.
	trades := tradesFromPcts(10, 10, 10, -5, -5, -5, -5, -5, -5, -5)
	cfg := testCfg()
	cfg.NRuns = 1000

	sim, err := Simulate(trades, cfg)
	require.NoError(t, err)
	assert.Zero(t, sim.RuinProbability)
}

func TestRuinFloorTriggers(t *testing.T) {
	trades := tradesFromPcts(-100)
	cfg := testCfg()
	cfg.NRuns = 50

	sim, err := Simulate(trades, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim.RuinProbability)
}

// ruinEstimateVariance re-estimates the ruin probability over distinct seed
// sequences and returns the sample variance of the estimates.
func ruinEstimateVariance(t *testing.T, trades []domain.SimulatedTrade, nRuns int) float64 {
	t.Helper()
	const reps = 24
	estimates := make([]float64, reps)
	for i := range estimates {
		cfg := Config{
			NRuns:          nRuns,
			Method:         Bootstrap,
			InitialCapital: 10_000,
			RuinFloor:      4_000,
			Seed:           int64(i+1) * 31,
			Workers:        3,
		}
		sim, err := Simulate(trades, cfg)
		require.NoError(t, err)
		estimates[i] = sim.RuinProbability
	}

	mean := 0.0
	for _, e := range estimates {
		mean += e
	}
	mean /= reps
	variance := 0.0
	for _, e := range estimates {
		variance += (e - mean) * (e - mean)
	}
	return variance / (reps - 1)
}

func TestRuinEstimateConvergesWithMoreRuns(t *testing.T) {
	// Volatile win/loss mix whose ruin probability sits well inside (0, 1),
	// so small-sample estimates fluctuate between seed sequences.
	trades := tradesFromPcts(20, 15, -40, -35, 10, -45, 25, -30)

	small := ruinEstimateVariance(t, trades, 100)
	large := ruinEstimateVariance(t, trades, 10_000)

	// Estimator variance shrinks roughly as 1/n; a 100x trial increase must
	// cut it by at least an order of magnitude.
	assert.Positive(t, small)
	assert.Less(t, large, small/10)
}

func TestDistributionPercentilesOrdered(t *testing.T) {
	trades := tradesFromPcts(5, -3, 8, -6, 2, -1, 4)
	sim, err := Simulate(trades, testCfg())
	require.NoError(t, err)

	eq := sim.TerminalEquity
	assert.LessOrEqual(t, eq.P5, eq.P25)
	assert.LessOrEqual(t, eq.P25, eq.P50)
	assert.LessOrEqual(t, eq.P50, eq.P75)
	assert.LessOrEqual(t, eq.P75, eq.P95)

	dd := sim.MaxDrawdown
	assert.LessOrEqual(t, dd.P5, dd.P95)
	assert.GreaterOrEqual(t, dd.P5, 0.0)
}

func TestSimulateInputValidation(t *testing.T) {
	cfg := testCfg()

	_, err := Simulate(nil, cfg)
	assert.ErrorIs(t, err, domain.ErrInsufficientSample)

	trades := tradesFromPcts(1, -1)

	bad := cfg
	bad.NRuns = 0
	_, err = Simulate(trades, bad)
	assert.Error(t, err)

	bad = cfg
	bad.InitialCapital = 0
	_, err = Simulate(trades, bad)
	assert.Error(t, err)

	bad = cfg
	bad.Method = "JITTER"
	_, err = Simulate(trades, bad)
	assert.Error(t, err)
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, percentile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 1.2, percentile(sorted, 0.05), 1e-9)
	assert.InDelta(t, 5.0, percentile(sorted, 1.0), 1e-9)
	assert.InDelta(t, 42.0, percentile([]float64{42}, 0.5), 1e-9)
	assert.Zero(t, percentile(nil, 0.5))
}
