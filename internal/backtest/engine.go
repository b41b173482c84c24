// Package backtest orchestrates the trade simulator over a symbol,
// timeframe and date range, producing run records with derived metrics.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/data"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/metrics"
	"github.com/quantforge/adaptive/internal/sim"
)

// Engine runs backtests against a data provider and signal evaluator.
// A nil cache disables memoization.
type Engine struct {
	provider data.Provider
	eval     sim.Evaluator
	cache    Cache
	capital  float64
	window   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables result memoization keyed by (config, symbol, timeframe,
// range).
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithInitialCapital overrides the default simulated starting capital.
func WithInitialCapital(c float64) Option {
	return func(e *Engine) { e.capital = c }
}

// WithEvaluatorWindow overrides the trailing window handed to the evaluator.
func WithEvaluatorWindow(n int) Option {
	return func(e *Engine) { e.window = n }
}

// NewEngine creates a backtest engine.
func NewEngine(provider data.Provider, eval sim.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		eval:     eval,
		capital:  10_000,
		window:   50,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one backtest. The returned run is always in a terminal
// status: COMPLETED with trades and metrics, or FAILED with the error
// recorded. Running the same request twice yields metrically identical
// results but a distinct run identity, unless served from the cache.
func (e *Engine) Run(ctx context.Context, req Request) (*Run, error) {
	// Normalize the capital before the cache key is taken so a defaulted
	// request and an explicit one share the same memo entry.
	if req.InitialCapital <= 0 {
		req.InitialCapital = e.capital
	}

	run := &Run{
		ID:        uuid.New().String(),
		Config:    req.Config,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Range:     req.Range,
		Status:    domain.StatusPending,
		StartedAt: time.Now().UTC(),
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, req.CacheKey()); ok {
			cached.ID = run.ID
			cached.StartedAt = run.StartedAt
			cached.EndedAt = time.Now().UTC()
			cached.Cached = true
			metrics.BacktestCacheHits.Inc()
			log.Debug().Str("symbol", req.Symbol).Str("config", req.Config.ID).Msg("backtest served from cache")
			return cached, nil
		}
	}

	run.Status = domain.StatusRunning

	candles, err := e.provider.GetCandles(ctx, req.Symbol, req.Timeframe, req.Range)
	if err != nil {
		return e.fail(run, err), err
	}

	result, err := sim.Simulate(candles, req.Config, e.eval, sim.Options{
		Symbol:         req.Symbol,
		InitialCapital: req.InitialCapital,
		WindowSize:     e.window,
	})
	if err != nil {
		return e.fail(run, err), err
	}

	run.Trades = result.Trades
	run.Equity = result.EquityCurve
	run.Metrics = ComputeMetrics(result.Trades, result.EquityCurve, req.InitialCapital, req.Range)
	run.Status = domain.StatusCompleted
	run.EndedAt = time.Now().UTC()
	metrics.BacktestsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()

	log.Debug().
		Str("symbol", req.Symbol).
		Str("config", req.Config.ID).
		Int("trades", run.Metrics.TotalTrades).
		Float64("net_pnl", run.Metrics.NetPnL).
		Msg("backtest completed")

	if e.cache != nil {
		e.cache.Put(ctx, req.CacheKey(), run)
	}
	return run, nil
}

// fail transitions a run to FAILED, recording the cause. A run is never
// left in RUNNING.
func (e *Engine) fail(run *Run, err error) *Run {
	run.Status = domain.StatusFailed
	run.Error = err.Error()
	run.EndedAt = time.Now().UTC()
	metrics.BacktestsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	log.Warn().Str("symbol", run.Symbol).Str("config", run.Config.ID).Err(err).Msg("backtest failed")
	return run
}
