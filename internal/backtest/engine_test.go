package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/data"
	"github.com/quantforge/adaptive/internal/domain"
)

// stubEval opens a long with fixed exit offsets whenever the bar's volume is
// non-zero; the volume doubles as confidence.
type stubEval struct{}

func (stubEval) Evaluate(window []domain.Candle, _ domain.StrategyConfig) *domain.SignalCandidate {
	last := window[len(window)-1]
	if last.Volume <= 0 {
		return nil
	}
	return &domain.SignalCandidate{
		Direction:  domain.Long,
		Entry:      last.Close,
		StopLoss:   last.Close - 5,
		TakeProfit: last.Close + 3,
		Confidence: last.Volume,
		Timeframe:  domain.TF5m,
	}
}

func fixtureCandles(n int, signals map[int]float64) []domain.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	price := 100.0
	for i := range out {
		out[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price + 1.5,
			Low:      price - 0.2,
			Close:    price + 1,
			Volume:   signals[i],
		}
		price++
	}
	return out
}

func fixtureRequest(n int) Request {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	return Request{
		Symbol:    "BTCUSD",
		Timeframe: domain.TF5m,
		Range:     domain.TimeRange{From: base, To: base.Add(time.Duration(n) * 5 * time.Minute)},
		Config:    cfg,
	}
}

func TestEngineRunCompletes(t *testing.T) {
	provider := data.NewStaticProvider()
	provider.Add("BTCUSD", fixtureCandles(40, map[int]float64{5: 0.9, 20: 0.8}))
	eng := NewEngine(provider, stubEval{})

	run, err := eng.Run(context.Background(), fixtureRequest(40))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, run.Status)
	assert.Equal(t, 2, run.Metrics.TotalTrades)
	assert.Len(t, run.Equity, 40)
	assert.False(t, run.EndedAt.IsZero())
	assert.False(t, run.Cached)
}

func TestEngineRerunIsMetricallyIdentical(t *testing.T) {
	provider := data.NewStaticProvider()
	provider.Add("BTCUSD", fixtureCandles(40, map[int]float64{5: 0.9, 20: 0.8}))
	eng := NewEngine(provider, stubEval{})
	req := fixtureRequest(40)

	a, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := eng.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.Trades, b.Trades)
}

func TestEngineProviderFailure(t *testing.T) {
	eng := NewEngine(data.NewStaticProvider(), stubEval{})

	run, err := eng.Run(context.Background(), fixtureRequest(40))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	assert.False(t, run.EndedAt.IsZero())
}

func TestEngineInvalidConfigFails(t *testing.T) {
	provider := data.NewStaticProvider()
	provider.Add("BTCUSD", fixtureCandles(40, nil))
	eng := NewEngine(provider, stubEval{})

	req := fixtureRequest(40)
	req.Config.MinConfidence = 3
	run, err := eng.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, domain.IsSimulationError(err))
	assert.Equal(t, domain.StatusFailed, run.Status)
}

func TestEngineCacheHit(t *testing.T) {
	provider := data.NewStaticProvider()
	provider.Add("BTCUSD", fixtureCandles(40, map[int]float64{5: 0.9}))
	eng := NewEngine(provider, stubEval{}, WithCache(NewMemoryCache()))
	req := fixtureRequest(40)

	first, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Metrics, second.Metrics)

	// A different config fingerprint misses.
	req.Config = req.Config.Derive(func(c *domain.StrategyConfig) { c.StopLossATR = 2.5 })
	third, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

func TestEngineCacheKeyedByCapital(t *testing.T) {
	provider := data.NewStaticProvider()
	provider.Add("BTCUSD", fixtureCandles(40, map[int]float64{5: 0.9}))
	eng := NewEngine(provider, stubEval{}, WithCache(NewMemoryCache()))

	req := fixtureRequest(40)
	req.InitialCapital = 10_000
	first, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	// A defaulted request resolves to the engine's capital and shares the
	// memo entry with the explicit one.
	defaulted := fixtureRequest(40)
	second, err := eng.Run(context.Background(), defaulted)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	// A different capital changes absolute PnL and ROI, so it misses.
	req.InitialCapital = 50_000
	third, err := eng.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.InDelta(t, 5*first.Metrics.NetPnL, third.Metrics.NetPnL, 1e-6)
}

func TestRequestCacheKeyStability(t *testing.T) {
	a := fixtureRequest(40)
	b := fixtureRequest(40)
	b.Config = a.Config.Derive(nil) // same tunables, new identity
	assert.Equal(t, a.CacheKey(), b.CacheKey())

	b.Symbol = "ETHUSD"
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())
}

func TestMemoryCacheCopies(t *testing.T) {
	c := NewMemoryCache()
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)

	run := &Run{ID: "a", Status: domain.StatusCompleted, Metrics: domain.PerformanceMetrics{NetPnL: 5}}
	c.Put(context.Background(), "k", run)
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, run.Metrics, got.Metrics)

	got.Status = domain.StatusFailed
	again, _ := c.Get(context.Background(), "k")
	assert.Equal(t, domain.StatusCompleted, again.Status)
}
