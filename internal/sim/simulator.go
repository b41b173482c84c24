// Package sim replays price history against a strategy configuration and a
// simulated account. It is fully deterministic: no wall clock, no randomness.
package sim

import (
	"github.com/quantforge/adaptive/internal/domain"
)

// Evaluator produces a signal candidate for the trailing candle window, or
// nil when no setup is present. Implementations must be pure and
// deterministic for identical inputs.
type Evaluator interface {
	Evaluate(window []domain.Candle, cfg domain.StrategyConfig) *domain.SignalCandidate
}

// Options control a single simulation pass.
type Options struct {
	Symbol         string
	InitialCapital float64
	WindowSize     int // trailing candles handed to the evaluator
}

// DefaultOptions returns baseline simulation options.
func DefaultOptions(symbol string) Options {
	return Options{
		Symbol:         symbol,
		InitialCapital: 10_000,
		WindowSize:     50,
	}
}

// Result is the output of one simulation pass. The trade list is
// time-ordered and non-overlapping per symbol; the equity curve carries one
// realized-equity point per candle.
type Result struct {
	Trades      []domain.SimulatedTrade
	EquityCurve []float64
	FinalEquity float64
}

// position is a simulated open position awaiting an exit.
type position struct {
	candidate  domain.SignalCandidate
	entryPrice float64
	entryIdx   int
	qty        float64
	notional   float64
}

// Simulate replays candles in time order against cfg, opening positions from
// the evaluator's candidates and closing them on stop-loss, take-profit or
// end-of-data. Equity updates only on trade close, never on unrealized marks.
func Simulate(candles []domain.Candle, cfg domain.StrategyConfig, eval Evaluator, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewSimulationError(opts.Symbol, "invalid config: %v", err)
	}
	if len(candles) == 0 {
		return nil, domain.NewSimulationError(opts.Symbol, "empty candle series")
	}
	if opts.InitialCapital <= 0 {
		return nil, domain.NewSimulationError(opts.Symbol, "initial capital %.2f must be positive", opts.InitialCapital)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return nil, domain.NewSimulationError(opts.Symbol, "candle open_time not strictly increasing at index %d", i)
		}
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 50
	}

	equity := opts.InitialCapital
	curve := make([]float64, len(candles))
	trades := make([]domain.SimulatedTrade, 0, 16)
	open := make([]position, 0, cfg.MaxOpenPositions)
	var pending *domain.SignalCandidate

	for i, c := range candles {
		// Fill a next-open entry queued on the previous bar. The fill
		// happens at this bar's open, ahead of its intra-bar range.
		if pending != nil {
			if len(open) < cfg.MaxOpenPositions {
				open = append(open, openPosition(*pending, c.Open, i, equity, cfg))
			}
			pending = nil
		}

		// Resolve exits. A position entered at a bar's close becomes
		// eligible for exit on the following bar; one filled at this bar's
		// open is checked against this bar's range immediately.
		kept := open[:0]
		for _, pos := range open {
			reason, price, hit := checkExit(pos.candidate, c, cfg.TieBreak)
			if !hit {
				kept = append(kept, pos)
				continue
			}
			tr := closePosition(opts.Symbol, pos, candles, i, price, reason)
			equity += tr.PnL
			trades = append(trades, tr)
		}
		open = kept

		// Ask the evaluator for a fresh setup when capacity remains.
		if len(open) < cfg.MaxOpenPositions && pending == nil {
			lo := i - opts.WindowSize + 1
			if lo < 0 {
				lo = 0
			}
			cand := eval.Evaluate(candles[lo:i+1], cfg)
			if cand != nil && cand.Confidence >= cfg.MinConfidence && cand.Validate() == nil {
				switch cfg.EntryPolicy {
				case domain.EntryAtNextOpen:
					if i < len(candles)-1 {
						cp := *cand
						pending = &cp
					}
				default: // EntryAtClose
					open = append(open, openPosition(*cand, c.Close, i, equity, cfg))
				}
			}
		}

		curve[i] = equity
	}

	// Terminate anything still open at the last close.
	last := len(candles) - 1
	for _, pos := range open {
		tr := closePosition(opts.Symbol, pos, candles, last, candles[last].Close, domain.ExitTimeout)
		equity += tr.PnL
		trades = append(trades, tr)
	}
	curve[last] = equity

	return &Result{Trades: trades, EquityCurve: curve, FinalEquity: equity}, nil
}

// checkExit tests one bar against a position's exit levels. When both levels
// fall inside the bar's range the tie-break policy decides; stop-loss-first
// is the conservative assumption.
func checkExit(cand domain.SignalCandidate, c domain.Candle, tie domain.TieBreakPolicy) (domain.ExitReason, float64, bool) {
	var slHit, tpHit bool
	switch cand.Direction {
	case domain.Long:
		slHit = c.Low <= cand.StopLoss
		tpHit = c.High >= cand.TakeProfit
	case domain.Short:
		slHit = c.High >= cand.StopLoss
		tpHit = c.Low <= cand.TakeProfit
	}
	switch {
	case slHit && tpHit:
		if tie == domain.TieBreakTakeFirst {
			return domain.ExitTakeProfit, cand.TakeProfit, true
		}
		return domain.ExitStopLoss, cand.StopLoss, true
	case slHit:
		return domain.ExitStopLoss, cand.StopLoss, true
	case tpHit:
		return domain.ExitTakeProfit, cand.TakeProfit, true
	}
	return "", 0, false
}

// openPosition sizes and opens a position at the given fill price. Sizing is
// deterministic: a fixed fraction of current realized equity or a fixed
// notional.
func openPosition(cand domain.SignalCandidate, fill float64, idx int, equity float64, cfg domain.StrategyConfig) position {
	notional := cfg.NotionalPerTrade
	if cfg.SizingMode == domain.SizeFractional {
		notional = equity * cfg.RiskPerTrade
	}
	return position{
		candidate:  cand,
		entryPrice: fill,
		entryIdx:   idx,
		qty:        notional / fill,
		notional:   notional,
	}
}

// closePosition realizes a position into an immutable SimulatedTrade.
func closePosition(symbol string, pos position, candles []domain.Candle, exitIdx int, exitPrice float64, reason domain.ExitReason) domain.SimulatedTrade {
	var pnl float64
	switch pos.candidate.Direction {
	case domain.Long:
		pnl = (exitPrice - pos.entryPrice) * pos.qty
	case domain.Short:
		pnl = (pos.entryPrice - exitPrice) * pos.qty
	}
	return domain.SimulatedTrade{
		Symbol:     symbol,
		Direction:  pos.candidate.Direction,
		EntryPrice: pos.entryPrice,
		StopLoss:   pos.candidate.StopLoss,
		TakeProfit: pos.candidate.TakeProfit,
		EntryTime:  candles[pos.entryIdx].OpenTime,
		ExitTime:   candles[exitIdx].OpenTime,
		ExitPrice:  exitPrice,
		ExitReason: reason,
		PnL:        pnl,
		PnLPct:     pnl / pos.notional * 100,
	}
}
