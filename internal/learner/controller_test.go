package learner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/data"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/montecarlo"
	"github.com/quantforge/adaptive/internal/tune"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// stubEval opens a long with fixed exit offsets whenever a bar's volume is
// non-zero; the volume doubles as confidence.
type stubEval struct{}

func (stubEval) Evaluate(window []domain.Candle, _ domain.StrategyConfig) *domain.SignalCandidate {
	last := window[len(window)-1]
	if last.Volume <= 0 {
		return nil
	}
	return &domain.SignalCandidate{
		Direction:  domain.Long,
		Entry:      last.Close,
		StopLoss:   last.Close - 5,
		TakeProfit: last.Close + 3,
		Confidence: last.Volume,
		Timeframe:  domain.TF5m,
	}
}

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *captureNotifier) Publish(e Event) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

func (n *captureNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}

var (
	fixtureNow   = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixtureKey   = Key{Symbol: "BTCUSD", MarketType: "spot"}
	fixtureSpan  = 3 * time.Hour
	fixtureTrain = time.Hour
)

// fixtureProvider serves 5m bars across the evaluation history plus one
// train span, with a signal every sixth bar.
func fixtureProvider() *data.StaticProvider {
	start := fixtureNow.Add(-fixtureSpan - fixtureTrain)
	n := int((fixtureSpan + fixtureTrain) / (5 * time.Minute))
	candles := make([]domain.Candle, n)
	price := 100.0
	for i := range candles {
		vol := 0.0
		if i%6 == 2 {
			vol = 0.9
		}
		candles[i] = domain.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price + 1.5,
			Low:      price - 0.2,
			Close:    price + 1,
			Volume:   vol,
		}
		price++
	}
	p := data.NewStaticProvider()
	p.Add("BTCUSD", candles)
	return p
}

type fixture struct {
	controller *Controller
	registry   *ActiveRegistry
	audit      *MemoryAuditLog
	notifier   *captureNotifier
}

func newFixture(t *testing.T, provider data.Provider, mutate func(*Config)) *fixture {
	t.Helper()
	engine := backtest.NewEngine(provider, stubEval{})
	scorer := tune.NewScorer(tune.ObjectiveComposite, tune.CompositeWeights{})

	searchCfg := tune.DefaultConfig()
	searchCfg.MinTrades = 1
	searcher := tune.NewSearcher(engine, scorer, searchCfg, nil)
	space := tune.Space{"min_confidence": {Values: []float64{0.5, 0.7}}}

	wfCfg := walkforward.Config{
		Split:          walkforward.SplitConfig{TrainSpan: fixtureTrain, TestSpan: time.Hour},
		MinTrainTrades: 1,
		Concurrency:    2,
		InitialCapital: 10_000,
	}
	optimizer := walkforward.NewOptimizer(engine, searcher, scorer, space, wfCfg)

	mcCfg := montecarlo.DefaultConfig()
	mcCfg.NRuns = 200
	mcCfg.Workers = 2

	cfg := Config{
		RetuneEveryNTrades: 50,
		EvalInterval:       24 * time.Hour,
		HistorySpan:        fixtureSpan,
		Timeframe:          domain.TF5m,
		MinTradeSupport:    1,
		PromotionMargin:    0.01,
		RuinTolerance:      1.0,
		InitialCapital:     10_000,
		MonteCarlo:         mcCfg,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	registry := NewActiveRegistry()
	audit := NewMemoryAuditLog()
	notifier := &captureNotifier{}
	ctrl := NewController(registry, engine, optimizer, scorer, audit, notifier, cfg)
	ctrl.SetClock(func() time.Time { return fixtureNow })
	return &fixture{controller: ctrl, registry: registry, audit: audit, notifier: notifier}
}

func TestBootstrapInstallsInitialConfig(t *testing.T) {
	f := newFixture(t, fixtureProvider(), nil)
	cfg := domain.DefaultStrategyConfig("BTCUSD")

	require.NoError(t, f.controller.Bootstrap(context.Background(), fixtureKey, cfg))
	active, ok := f.registry.Active(fixtureKey)
	require.True(t, ok)
	assert.Equal(t, cfg.ID, active.ID)

	entries, err := f.audit.List(context.Background(), fixtureKey)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomePromoted, entries[0].Outcome)
	assert.Equal(t, "bootstrap", entries[0].Reason)

	// A second bootstrap must not clobber the active config.
	assert.Error(t, f.controller.Bootstrap(context.Background(), fixtureKey, domain.DefaultStrategyConfig("BTCUSD")))
}

func TestFirstCyclePromotesWithoutBaseline(t *testing.T) {
	f := newFixture(t, fixtureProvider(), nil)

	result, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, result.Outcome)
	require.NotNil(t, result.Candidate)

	active, ok := f.registry.Active(fixtureKey)
	require.True(t, ok)
	assert.Equal(t, result.Candidate.ID, active.ID)
	assert.Equal(t, uint64(1), f.registry.Version(fixtureKey))
	assert.Equal(t, StateIdle, f.controller.State(fixtureKey))

	entries, err := f.audit.List(context.Background(), fixtureKey)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomePromoted, entries[0].Outcome)
	assert.Equal(t, active.ID, entries[0].NewConfigID)

	assert.Eventually(t, func() bool {
		for _, e := range f.notifier.all() {
			if e.Type == EventConfigPromoted && e.NewConfigID == active.ID {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPromotionMarginPreventsFlapping(t *testing.T) {
	f := newFixture(t, fixtureProvider(), func(c *Config) { c.PromotionMargin = 1000 })
	require.NoError(t, f.controller.Bootstrap(context.Background(), fixtureKey, domain.DefaultStrategyConfig("BTCUSD")))
	active, _ := f.registry.Active(fixtureKey)

	result, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Contains(t, result.RejectReason, "not better")

	// The active config is untouched.
	after, _ := f.registry.Active(fixtureKey)
	assert.Equal(t, active.ID, after.ID)
	assert.Equal(t, uint64(1), f.registry.Version(fixtureKey))

	entries, err := f.audit.List(context.Background(), fixtureKey)
	require.NoError(t, err)
	require.Len(t, entries, 2) // bootstrap + rejection
	assert.Equal(t, OutcomeRejected, entries[1].Outcome)
}

func TestInsufficientSupportRejects(t *testing.T) {
	f := newFixture(t, fixtureProvider(), func(c *Config) { c.MinTradeSupport = 1000 })

	result, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Contains(t, result.RejectReason, "insufficient out-of-sample support")

	_, ok := f.registry.Active(fixtureKey)
	assert.False(t, ok, "nothing promoted")
}

func TestFailedCycleDegradesToIdle(t *testing.T) {
	f := newFixture(t, fixtureProvider(), nil)
	// Break the walk-forward split so the cycle fails outright.
	engine := backtest.NewEngine(fixtureProvider(), stubEval{})
	scorer := tune.NewScorer(tune.ObjectiveComposite, tune.CompositeWeights{})
	searcher := tune.NewSearcher(engine, scorer, tune.DefaultConfig(), nil)
	badOpt := walkforward.NewOptimizer(engine, searcher, scorer, tune.DefaultSpace(), walkforward.Config{})
	f.controller.optimizer = badOpt

	result, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerManual)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, StateIdle, f.controller.State(fixtureKey))

	entries, aerr := f.audit.List(context.Background(), fixtureKey)
	require.NoError(t, aerr)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeFailed, entries[0].Outcome)
}

// gateProvider blocks the first fetch until released, so a cycle can be held
// in flight deterministically.
type gateProvider struct {
	inner   data.Provider
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *gateProvider) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error) {
	p.once.Do(func() {
		close(p.started)
		<-p.release
	})
	return p.inner.GetCandles(ctx, symbol, tf, tr)
}

func TestConcurrentTriggersCoalesce(t *testing.T) {
	gate := &gateProvider{
		inner:   fixtureProvider(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, gate, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerManual)
		assert.NoError(t, err)
	}()

	<-gate.started
	result, err := f.controller.Trigger(context.Background(), fixtureKey, TriggerInterval)
	require.NoError(t, err)
	assert.True(t, result.Coalesced)

	close(gate.release)
	<-done

	// Exactly one cycle ran.
	entries, err := f.audit.List(context.Background(), fixtureKey)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordTradeClosedFiresAtThreshold(t *testing.T) {
	f := newFixture(t, fixtureProvider(), func(c *Config) { c.RetuneEveryNTrades = 3 })

	assert.False(t, f.controller.RecordTradeClosed(fixtureKey))
	assert.False(t, f.controller.RecordTradeClosed(fixtureKey))
	assert.True(t, f.controller.RecordTradeClosed(fixtureKey))

	assert.Eventually(t, func() bool {
		entries, err := f.audit.List(context.Background(), fixtureKey)
		return err == nil && len(entries) > 0
	}, 5*time.Second, 20*time.Millisecond)
}
