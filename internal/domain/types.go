package domain

import (
	"fmt"
	"time"
)

// Timeframe identifies the bar interval of a candle series.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the bar interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// Candle is a single OHLCV bar. OpenTime is strictly increasing within a
// series and candles are immutable once produced by the data source.
type Candle struct {
	OpenTime time.Time `json:"open_time" db:"open_time"`
	Open     float64   `json:"open" db:"open"`
	High     float64   `json:"high" db:"high"`
	Low      float64   `json:"low" db:"low"`
	Close    float64   `json:"close" db:"close"`
	Volume   float64   `json:"volume" db:"volume"`
}

// Direction of a signal or trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// ExitReason records why a simulated position was closed. Exactly one
// reason is assigned per trade.
type ExitReason string

const (
	ExitTakeProfit  ExitReason = "TP_HIT"
	ExitStopLoss    ExitReason = "SL_HIT"
	ExitTimeout     ExitReason = "TIMEOUT"
	ExitForcedClose ExitReason = "FORCED_CLOSE"
)

// SignalCandidate is emitted by the external evaluator for one candle under
// one config. Ephemeral, never persisted by the core.
type SignalCandidate struct {
	Direction  Direction
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64 // [0,1]
	Timeframe  Timeframe
}

// Validate checks internal consistency of a candidate.
func (s SignalCandidate) Validate() error {
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.4f outside [0,1]", s.Confidence)
	}
	switch s.Direction {
	case Long:
		if s.StopLoss >= s.Entry || s.TakeProfit <= s.Entry {
			return fmt.Errorf("long levels inverted: sl=%.4f entry=%.4f tp=%.4f", s.StopLoss, s.Entry, s.TakeProfit)
		}
	case Short:
		if s.StopLoss <= s.Entry || s.TakeProfit >= s.Entry {
			return fmt.Errorf("short levels inverted: sl=%.4f entry=%.4f tp=%.4f", s.StopLoss, s.Entry, s.TakeProfit)
		}
	default:
		return fmt.Errorf("unknown direction %q", s.Direction)
	}
	return nil
}

// SimulatedTrade is a completed trade produced by the simulator. Immutable
// after creation.
type SimulatedTrade struct {
	Symbol     string     `json:"symbol" db:"symbol"`
	Direction  Direction  `json:"direction" db:"direction"`
	EntryPrice float64    `json:"entry_price" db:"entry_price"`
	StopLoss   float64    `json:"stop_loss" db:"stop_loss"`
	TakeProfit float64    `json:"take_profit" db:"take_profit"`
	EntryTime  time.Time  `json:"entry_time" db:"entry_time"`
	ExitTime   time.Time  `json:"exit_time" db:"exit_time"`
	ExitPrice  float64    `json:"exit_price" db:"exit_price"`
	ExitReason ExitReason `json:"exit_reason" db:"exit_reason"`
	PnL        float64    `json:"pnl" db:"pnl"`
	PnLPct     float64    `json:"pnl_pct" db:"pnl_pct"` // percent of entry notional
}

// RunStatus tracks the lifecycle of backtest runs and tuning jobs.
type RunStatus string

const (
	StatusPending   RunStatus = "PENDING"
	StatusRunning   RunStatus = "RUNNING"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
)

// TimeRange is a half-open [From, To) window.
type TimeRange struct {
	From time.Time `json:"from" db:"range_from"`
	To   time.Time `json:"to" db:"range_to"`
}

// Contains reports whether t falls inside the half-open range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.From) && t.Before(tr.To)
}

// Span returns the range length.
func (tr TimeRange) Span() time.Duration {
	return tr.To.Sub(tr.From)
}

func (tr TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", tr.From.Format(time.RFC3339), tr.To.Format(time.RFC3339))
}
