package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/data"
	"github.com/quantforge/adaptive/internal/learner"
	"github.com/quantforge/adaptive/internal/tune"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// newTestController wires a controller whose cycles fail immediately (the
// walk-forward split is left unconfigured), so every tick leaves a FAILED
// audit entry without doing real work.
func newTestController(cfg learner.Config) (*learner.Controller, *learner.MemoryAuditLog) {
	engine := backtest.NewEngine(data.NewStaticProvider(), nil)
	scorer := tune.NewScorer(tune.ObjectiveComposite, tune.CompositeWeights{})
	searcher := tune.NewSearcher(engine, scorer, tune.DefaultConfig(), nil)
	optimizer := walkforward.NewOptimizer(engine, searcher, scorer, tune.DefaultSpace(), walkforward.Config{})
	audit := learner.NewMemoryAuditLog()
	ctrl := learner.NewController(learner.NewActiveRegistry(), engine, optimizer, scorer, audit, nil, cfg)
	return ctrl, audit
}

func TestSchedulerFiresEnabledEntries(t *testing.T) {
	ctrl, audit := newTestController(learner.DefaultConfig())
	key := learner.Key{Symbol: "BTCUSD", MarketType: "spot"}
	s := NewScheduler(ctrl, []Entry{
		{Key: key, Interval: 10 * time.Millisecond, Enabled: true},
		{Key: learner.Key{Symbol: "ETHUSD", MarketType: "spot"}, Interval: 10 * time.Millisecond, Enabled: false},
	})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		entries, err := audit.List(context.Background(), key)
		return err == nil && len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// The disabled entry never fires.
	entries, err := audit.List(context.Background(), learner.Key{Symbol: "ETHUSD", MarketType: "spot"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSchedulerDefaultsIntervalFromController(t *testing.T) {
	cfg := learner.DefaultConfig()
	cfg.EvalInterval = 15 * time.Millisecond
	ctrl, audit := newTestController(cfg)
	key := learner.Key{Symbol: "SOLUSD", MarketType: "spot"}

	// No per-entry interval: the controller's eval interval drives the tick.
	s := NewScheduler(ctrl, []Entry{{Key: key, Enabled: true}})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		entries, err := audit.List(context.Background(), key)
		return err == nil && len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	ctrl, _ := newTestController(learner.DefaultConfig())
	s := NewScheduler(ctrl, nil)

	s.Start(context.Background())
	s.Start(context.Background()) // no-op while running
	s.Stop()
	s.Stop() // no-op once stopped
}
