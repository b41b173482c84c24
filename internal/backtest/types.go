package backtest

import (
	"strconv"
	"time"

	"github.com/quantforge/adaptive/internal/domain"
)

// Run is one backtest execution: a config replayed over a symbol, timeframe
// and date range. The run owns its trades; metrics are derived from them.
type Run struct {
	ID        string                    `json:"id" db:"id"`
	Config    domain.StrategyConfig     `json:"config"`
	Symbol    string                    `json:"symbol" db:"symbol"`
	Timeframe domain.Timeframe          `json:"timeframe" db:"timeframe"`
	Range     domain.TimeRange          `json:"range"`
	Status    domain.RunStatus          `json:"status" db:"status"`
	Error     string                    `json:"error,omitempty" db:"error"`
	Trades    []domain.SimulatedTrade   `json:"trades"`
	Equity    []float64                 `json:"equity_curve"`
	Metrics   domain.PerformanceMetrics `json:"metrics"`
	StartedAt time.Time                 `json:"started_at" db:"started_at"`
	EndedAt   time.Time                 `json:"ended_at" db:"ended_at"`
	Cached    bool                      `json:"cached"` // served from the memoization cache
}

// Request identifies the inputs of a run. Two requests with equal
// fingerprints produce metrically identical results.
type Request struct {
	Symbol         string
	Timeframe      domain.Timeframe
	Range          domain.TimeRange
	Config         domain.StrategyConfig
	InitialCapital float64
}

// CacheKey is the memoization key: config tunables, data coordinates and the
// starting capital (absolute PnL and ROI depend on it).
func (r Request) CacheKey() string {
	return r.Config.Fingerprint() + "|" + r.Symbol + "|" + string(r.Timeframe) + "|" +
		r.Range.From.UTC().Format(time.RFC3339) + "|" + r.Range.To.UTC().Format(time.RFC3339) + "|" +
		strconv.FormatFloat(r.InitialCapital, 'f', -1, 64)
}
