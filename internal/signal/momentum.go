// Package signal provides the reference momentum evaluator used by the CLI
// and the test suite. The engine itself only depends on the sim.Evaluator
// contract; production deployments may plug in any pure evaluator.
package signal

import (
	"math"

	"github.com/quantforge/adaptive/internal/domain"
)

const (
	fastPeriod = 9
	slowPeriod = 21
	atrPeriod  = 14
	rsiPeriod  = 14
)

// MomentumEvaluator is a pure, deterministic trend-following evaluator:
// SMA crossover direction, RSI exhaustion filter, ATR-derived exit levels.
type MomentumEvaluator struct{}

// NewMomentumEvaluator returns the stateless reference evaluator.
func NewMomentumEvaluator() *MomentumEvaluator {
	return &MomentumEvaluator{}
}

// Evaluate inspects the trailing window and returns a candidate or nil.
func (m *MomentumEvaluator) Evaluate(window []domain.Candle, cfg domain.StrategyConfig) *domain.SignalCandidate {
	if len(window) < slowPeriod+1 {
		return nil
	}

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}

	fast := sma(closes, fastPeriod)
	slow := sma(closes, slowPeriod)
	atr := averageTrueRange(window, atrPeriod)
	rsi := relativeStrength(closes, rsiPeriod)
	if atr <= 0 || slow <= 0 {
		return nil
	}

	last := window[len(window)-1]
	spread := (fast - slow) / slow

	var dir domain.Direction
	switch {
	case spread > 0 && rsi < cfg.RSIOverbought:
		dir = domain.Long
	case spread < 0 && rsi > cfg.RSIOversold:
		dir = domain.Short
	default:
		return nil
	}

	// Trend strength gate: mean absolute close-to-close move relative to ATR
	// stands in for ADX on the 0-100 scale.
	strength := trendStrength(closes, atr)
	if strength < cfg.ADXMin {
		return nil
	}

	conf := clamp01(0.5 + 25*math.Abs(spread))

	cand := &domain.SignalCandidate{
		Direction:  dir,
		Entry:      last.Close,
		Confidence: conf,
		Timeframe:  domain.TF5m,
	}
	if dir == domain.Long {
		cand.StopLoss = last.Close - cfg.StopLossATR*atr
		cand.TakeProfit = last.Close + cfg.TakeProfitATR*atr
	} else {
		cand.StopLoss = last.Close + cfg.StopLossATR*atr
		cand.TakeProfit = last.Close - cfg.TakeProfitATR*atr
	}
	if cand.Validate() != nil {
		return nil
	}
	return cand
}

func sma(vals []float64, period int) float64 {
	if len(vals) < period {
		return 0
	}
	sum := 0.0
	for _, v := range vals[len(vals)-period:] {
		sum += v
	}
	return sum / float64(period)
}

func averageTrueRange(candles []domain.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	start := len(candles) - period
	for i := start; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := candles[i].High - candles[i].Low
		tr = math.Max(tr, math.Abs(candles[i].High-prevClose))
		tr = math.Max(tr, math.Abs(candles[i].Low-prevClose))
		sum += tr
	}
	return sum / float64(period)
}

func relativeStrength(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

func trendStrength(closes []float64, atr float64) float64 {
	if len(closes) < atrPeriod+1 || atr <= 0 {
		return 0
	}
	sum := 0.0
	start := len(closes) - atrPeriod
	for i := start; i < len(closes); i++ {
		sum += math.Abs(closes[i] - closes[i-1])
	}
	return sum / float64(atrPeriod) / atr * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
