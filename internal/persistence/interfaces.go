// Package persistence defines the storage contracts for the engine's
// entities. The core only needs create/read semantics keyed by identity;
// the technology behind them is an adapter concern.
package persistence

import (
	"context"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/learner"
	"github.com/quantforge/adaptive/internal/montecarlo"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// ConfigRepo stores strategy configurations and their lineage.
type ConfigRepo interface {
	// Save persists an immutable config. Saving the same ID twice is an
	// error; configs are never updated in place.
	Save(ctx context.Context, cfg domain.StrategyConfig) error

	// Get fetches a config by ID.
	Get(ctx context.Context, id string) (*domain.StrategyConfig, error)

	// Lineage walks derived_from links from id back to the root, newest
	// first.
	Lineage(ctx context.Context, id string) ([]domain.StrategyConfig, error)
}

// BacktestRepo stores backtest runs with their trades and metrics.
type BacktestRepo interface {
	Save(ctx context.Context, run *backtest.Run) error
	Get(ctx context.Context, id string) (*backtest.Run, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*backtest.Run, error)
}

// WalkForwardRepo stores walk-forward jobs with their window sequences.
type WalkForwardRepo interface {
	Save(ctx context.Context, job *walkforward.Job) error
	Get(ctx context.Context, id string) (*walkforward.Job, error)
}

// MonteCarloRepo stores simulations with derived distributions. Individual
// trials are not persisted; they are reproducible from the seed.
type MonteCarloRepo interface {
	Save(ctx context.Context, sim *montecarlo.Simulation) error
	Get(ctx context.Context, id string) (*montecarlo.Simulation, error)
}

// AuditRepo is the durable learner.AuditLog.
type AuditRepo interface {
	learner.AuditLog
}
