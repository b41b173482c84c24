package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/domain"
)

// zigzag builds a drifting series alternating a full step with a half-step
// retrace, keeping RSI away from the exhaustion bands.
func zigzag(n int, drift float64) []domain.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	price := 100.0
	for i := range out {
		step := drift
		if i%2 == 1 {
			step = -drift / 2
		}
		open := price
		cl := open + step
		hi, lo := cl, open
		if open > cl {
			hi, lo = open, cl
		}
		out[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:     open,
			High:     hi + 0.1,
			Low:      lo - 0.1,
			Close:    cl,
			Volume:   100,
		}
		price = cl
	}
	return out
}

func TestEvaluateNeedsWarmup(t *testing.T) {
	e := NewMomentumEvaluator()
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	assert.Nil(t, e.Evaluate(zigzag(21, 1), cfg))
}

func TestEvaluateLongInUptrend(t *testing.T) {
	e := NewMomentumEvaluator()
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	window := zigzag(40, 1)

	cand := e.Evaluate(window, cfg)
	require.NotNil(t, cand)
	assert.Equal(t, domain.Long, cand.Direction)
	assert.Equal(t, window[len(window)-1].Close, cand.Entry)
	assert.Less(t, cand.StopLoss, cand.Entry)
	assert.Greater(t, cand.TakeProfit, cand.Entry)
	assert.GreaterOrEqual(t, cand.Confidence, 0.0)
	assert.LessOrEqual(t, cand.Confidence, 1.0)
	require.NoError(t, cand.Validate())
}

func TestEvaluateShortInDowntrend(t *testing.T) {
	e := NewMomentumEvaluator()
	cfg := domain.DefaultStrategyConfig("BTCUSD")

	cand := e.Evaluate(zigzag(40, -1), cfg)
	require.NotNil(t, cand)
	assert.Equal(t, domain.Short, cand.Direction)
	assert.Greater(t, cand.StopLoss, cand.Entry)
	assert.Less(t, cand.TakeProfit, cand.Entry)
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewMomentumEvaluator()
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	window := zigzag(40, 1)

	a := e.Evaluate(window, cfg)
	b := e.Evaluate(window, cfg)
	assert.Equal(t, a, b)
}

func TestEvaluateTrendStrengthGate(t *testing.T) {
	e := NewMomentumEvaluator()
	cfg := domain.DefaultStrategyConfig("BTCUSD")
	cfg.ADXMin = 200 // unreachable on the 0-100 proxy scale
	assert.Nil(t, e.Evaluate(zigzag(40, 1), cfg))
}

func TestEvaluateRSIExhaustionFilter(t *testing.T) {
	// A gap-free monotone rise pins RSI at 100, above the overbought band.
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	window := make([]domain.Candle, 40)
	price := 100.0
	for i := range window {
		window[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price, High: price + 1.1, Low: price - 0.1, Close: price + 1, Volume: 100,
		}
		price++
	}
	e := NewMomentumEvaluator()
	assert.Nil(t, e.Evaluate(window, domain.DefaultStrategyConfig("BTCUSD")))
}
