package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryPolicy selects the fill price for a newly opened simulated position.
type EntryPolicy string

const (
	EntryAtClose    EntryPolicy = "close"     // fill at the signal candle's close
	EntryAtNextOpen EntryPolicy = "next_open" // fill at the following candle's open
)

// TieBreakPolicy resolves a bar whose range contains both the stop-loss and
// the take-profit level. Stop-loss-first is the conservative default.
type TieBreakPolicy string

const (
	TieBreakStopFirst TieBreakPolicy = "stop_first"
	TieBreakTakeFirst TieBreakPolicy = "take_first"
)

// SizingMode selects how position size is derived from capital.
type SizingMode string

const (
	SizeFractional SizingMode = "fractional" // fixed fraction of current equity
	SizeNotional   SizingMode = "notional"   // fixed cash amount per trade
)

// StrategyConfig is the immutable, versioned set of tunable strategy
// parameters. Evolution never mutates a config in place: Derive produces a
// new instance with a fresh identity and a lineage back-reference.
type StrategyConfig struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Version     int       `json:"version" db:"version"`
	DerivedFrom string    `json:"derived_from,omitempty" db:"derived_from"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// Indicator thresholds consumed by the signal evaluator.
	RSIOversold   float64 `json:"rsi_oversold" db:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" db:"rsi_overbought"`
	ADXMin        float64 `json:"adx_min" db:"adx_min"`

	// Exit levels as ATR multiples.
	StopLossATR   float64 `json:"stop_loss_atr" db:"stop_loss_atr"`
	TakeProfitATR float64 `json:"take_profit_atr" db:"take_profit_atr"`

	// Signal acceptance and sizing.
	MinConfidence    float64    `json:"min_confidence" db:"min_confidence"`
	SizingMode       SizingMode `json:"sizing_mode" db:"sizing_mode"`
	RiskPerTrade     float64    `json:"risk_per_trade" db:"risk_per_trade"`         // fraction of equity, SizeFractional
	NotionalPerTrade float64    `json:"notional_per_trade" db:"notional_per_trade"` // cash, SizeNotional
	MaxOpenPositions int        `json:"max_open_positions" db:"max_open_positions"`

	// Simulation policies.
	EntryPolicy EntryPolicy    `json:"entry_policy" db:"entry_policy"`
	TieBreak    TieBreakPolicy `json:"tie_break" db:"tie_break"`
}

// DefaultStrategyConfig returns a baseline config with a fresh identity.
func DefaultStrategyConfig(name string) StrategyConfig {
	return StrategyConfig{
		ID:               uuid.New().String(),
		Name:             name,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		RSIOversold:      30,
		RSIOverbought:    70,
		ADXMin:           20,
		StopLossATR:      1.5,
		TakeProfitATR:    3.0,
		MinConfidence:    0.6,
		SizingMode:       SizeFractional,
		RiskPerTrade:     0.02,
		NotionalPerTrade: 1000,
		MaxOpenPositions: 1,
		EntryPolicy:      EntryAtClose,
		TieBreak:         TieBreakStopFirst,
	}
}

// Validate checks parameter sanity before simulation.
func (c StrategyConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %.4f outside [0,1]", c.MinConfidence)
	}
	if c.StopLossATR <= 0 || c.TakeProfitATR <= 0 {
		return fmt.Errorf("ATR multipliers must be positive: sl=%.2f tp=%.2f", c.StopLossATR, c.TakeProfitATR)
	}
	if c.SizingMode == SizeFractional && (c.RiskPerTrade <= 0 || c.RiskPerTrade > 1) {
		return fmt.Errorf("risk_per_trade %.4f outside (0,1]", c.RiskPerTrade)
	}
	if c.SizingMode == SizeNotional && c.NotionalPerTrade <= 0 {
		return fmt.Errorf("notional_per_trade %.2f must be positive", c.NotionalPerTrade)
	}
	if c.MaxOpenPositions < 1 {
		return fmt.Errorf("max_open_positions %d must be >= 1", c.MaxOpenPositions)
	}
	return nil
}

// Derive returns a copy with a new identity, bumped version and lineage link.
// The mutate callback adjusts tunables on the copy.
func (c StrategyConfig) Derive(mutate func(*StrategyConfig)) StrategyConfig {
	next := c
	next.ID = uuid.New().String()
	next.Version = c.Version + 1
	next.DerivedFrom = c.ID
	next.CreatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(&next)
	}
	return next
}

// Equal reports whether two configs share identical tunables. Identity,
// version and lineage are excluded.
func (c StrategyConfig) Equal(o StrategyConfig) bool {
	return c.Fingerprint() == o.Fingerprint()
}

// Fingerprint hashes the tunable parameters only, giving a stable cache key
// for memoized backtest results.
func (c StrategyConfig) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%.6f|%.6f|%.6f|%.6f|%.6f|%.6f|%s|%.6f|%.6f|%d|%s|%s",
		c.RSIOversold, c.RSIOverbought, c.ADXMin,
		c.StopLossATR, c.TakeProfitATR, c.MinConfidence,
		c.SizingMode, c.RiskPerTrade, c.NotionalPerTrade,
		c.MaxOpenPositions, c.EntryPolicy, c.TieBreak)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
