package backtest

import (
	"math"
	"time"

	"github.com/quantforge/adaptive/internal/domain"
)

const hoursPerYear = 24 * 365.25

// ComputeMetrics derives performance metrics from a completed run's trades
// and equity curve. The formulas are fixed for compatibility:
//
//	win_rate      = wins / total_trades
//	profit_factor = gross_profit / |gross_loss|  (+Inf no losers, 0 no winners)
//	sharpe_ratio  = per-trade mean/stddev, annualized by trade frequency
//	max_drawdown  = largest peak-to-trough equity decline, fraction of peak
func ComputeMetrics(trades []domain.SimulatedTrade, equity []float64, initialCapital float64, tr domain.TimeRange) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		m.MaxDrawdown = maxDrawdown(equity)
		return m
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		m.NetPnL += t.PnL
		if t.PnL > 0 {
			m.Wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			m.Losses++
			grossLoss += -t.PnL
		}
	}
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)

	switch {
	case grossLoss == 0 && grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case grossProfit == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = grossProfit / grossLoss
	}

	m.SharpeRatio = sharpe(trades, tr)
	m.MaxDrawdown = maxDrawdown(equity)
	if initialCapital > 0 {
		m.ROI = m.NetPnL / initialCapital
	}
	return m
}

// sharpe computes the per-trade Sharpe ratio with a zero risk-free rate,
// annualized by the average trade frequency over the range.
func sharpe(trades []domain.SimulatedTrade, tr domain.TimeRange) float64 {
	if len(trades) < 2 {
		return 0
	}
	returns := make([]float64, len(trades))
	mean := 0.0
	for i, t := range trades {
		returns[i] = t.PnLPct / 100
		mean += returns[i]
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	span := tr.Span()
	if span <= 0 {
		span = trades[len(trades)-1].ExitTime.Sub(trades[0].EntryTime)
	}
	if span <= 0 {
		return 0
	}
	tradesPerYear := float64(len(trades)) / (span.Hours() / hoursPerYear)
	return mean / math.Sqrt(variance) * math.Sqrt(tradesPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline of the equity
// curve as a fraction of the peak.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// PoolMetrics combines trades from several out-of-sample windows into one
// trade-weighted metric set. The pooled equity is replayed multiplicatively
// from the initial capital in trade order.
func PoolMetrics(trades []domain.SimulatedTrade, initialCapital float64, tr domain.TimeRange) domain.PerformanceMetrics {
	if tr.Span() <= 0 {
		tr = tradeSpan(trades)
	}
	equity := make([]float64, 0, len(trades)+1)
	eq := initialCapital
	equity = append(equity, eq)
	for _, t := range trades {
		eq += t.PnL
		equity = append(equity, eq)
	}
	return ComputeMetrics(trades, equity, initialCapital, tr)
}

// tradeSpan is the tightest range covering every trade in the slice, used
// when the caller has no explicit range to annualize against.
func tradeSpan(trades []domain.SimulatedTrade) domain.TimeRange {
	if len(trades) == 0 {
		return domain.TimeRange{}
	}
	tr := domain.TimeRange{From: trades[0].EntryTime, To: trades[0].ExitTime}
	for _, t := range trades {
		if t.EntryTime.Before(tr.From) {
			tr.From = t.EntryTime
		}
		if t.ExitTime.After(tr.To) {
			tr.To = t.ExitTime.Add(time.Nanosecond)
		}
	}
	return tr
}
