package main

import (
	"fmt"
	"time"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/config"
	"github.com/quantforge/adaptive/internal/data"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/signal"
	"github.com/quantforge/adaptive/internal/tune"
)

// runtime bundles the wiring shared by all subcommands.
type runtime struct {
	cfg      *config.Config
	engine   *backtest.Engine
	searcher *tune.Searcher
	scorer   tune.Scorer
}

// buildRuntime loads config and wires the offline engine over the CSV
// provider.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	setLogLevel(cfg.LogLevel)

	if flagCSV == "" {
		return nil, fmt.Errorf("--csv is required for offline runs")
	}
	provider := data.NewBreakerProvider("csv", data.NewCSVProvider(flagCSV, flagSymbol))

	engine := backtest.NewEngine(provider, signal.NewMomentumEvaluator(),
		backtest.WithCache(backtest.NewMemoryCache()),
		backtest.WithInitialCapital(cfg.Learner.InitialCapital),
	)
	scorer := cfg.Scorer()
	searcher := tune.NewSearcher(engine, scorer, cfg.SearchConfig(), nil)

	return &runtime{cfg: cfg, engine: engine, searcher: searcher, scorer: scorer}, nil
}

// parseRange parses --from/--to values into a half-open range.
func parseRange(from, to string) (domain.TimeRange, error) {
	f, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("--from: %w", err)
	}
	t, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("--to: %w", err)
	}
	if !t.After(f) {
		return domain.TimeRange{}, fmt.Errorf("--to must be after --from")
	}
	return domain.TimeRange{From: f, To: t}, nil
}
