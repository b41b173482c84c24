// Package metrics exposes Prometheus instrumentation for the engine.
// Registration uses promauto against the default registry; the embedding
// process decides how to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BacktestsTotal counts backtest runs by terminal status.
	BacktestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_backtests_total",
		Help: "Backtest runs by terminal status",
	}, []string{"status"})

	// BacktestCacheHits counts memoized backtest results served.
	BacktestCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_backtest_cache_hits_total",
		Help: "Backtest results served from the memoization cache",
	})

	// CyclesTotal counts learning-controller evaluation cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_evaluation_cycles_total",
		Help: "Evaluation cycles by outcome (promoted, rejected, failed)",
	}, []string{"outcome"})

	// ActiveConfigVersion publishes the active config version per key.
	ActiveConfigVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adaptive_active_config_version",
		Help: "Version of the active strategy config per symbol/market key",
	}, []string{"key"})

	// TuningSamplesTotal counts evaluated parameter-search samples.
	TuningSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_tuning_samples_total",
		Help: "Parameter-search samples evaluated",
	})
)
