// Package learner decides when to re-tune a strategy, evaluates candidate
// configurations against the currently active one, and promotes winners
// without ever corrupting the live configuration.
package learner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/metrics"
	"github.com/quantforge/adaptive/internal/montecarlo"
	"github.com/quantforge/adaptive/internal/tune"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// State of a key's evaluation loop.
type State string

const (
	StateIdle       State = "IDLE"
	StateTriggered  State = "TRIGGERED"
	StateEvaluating State = "EVALUATING"
)

// TriggerReason records why an evaluation cycle started.
type TriggerReason string

const (
	TriggerTradeCount TriggerReason = "trade_count"
	TriggerManual     TriggerReason = "manual"
	TriggerInterval   TriggerReason = "interval"
)

// Config controls the controller's trigger and promotion rules.
type Config struct {
	RetuneEveryNTrades int               `yaml:"retune_every_n_trades"`
	EvalInterval       time.Duration     `yaml:"eval_interval"`
	HistorySpan        time.Duration     `yaml:"history_span"`
	Timeframe          domain.Timeframe  `yaml:"timeframe"`
	MinTradeSupport    int               `yaml:"min_trade_support"`
	PromotionMargin    float64           `yaml:"promotion_margin"` // anti-flapping
	RuinTolerance      float64           `yaml:"ruin_tolerance"`
	InitialCapital     float64           `yaml:"initial_capital"`
	MonteCarlo         montecarlo.Config `yaml:"monte_carlo"`
}

// DefaultConfig returns conservative promotion rules.
func DefaultConfig() Config {
	return Config{
		RetuneEveryNTrades: 50,
		EvalInterval:       24 * time.Hour,
		HistorySpan:        90 * 24 * time.Hour,
		Timeframe:          domain.TF5m,
		MinTradeSupport:    30,
		PromotionMargin:    0.1,
		RuinTolerance:      0.01,
		InitialCapital:     10_000,
		MonteCarlo:         montecarlo.DefaultConfig(),
	}
}

// CycleResult summarizes one evaluation cycle.
type CycleResult struct {
	Key            Key                    `json:"key"`
	Reason         TriggerReason          `json:"reason"`
	Outcome        Outcome                `json:"outcome"`
	Coalesced      bool                   `json:"coalesced"`
	Candidate      *domain.StrategyConfig `json:"candidate,omitempty"`
	CandidateScore float64                `json:"candidate_score"`
	ActiveScore    float64                `json:"active_score"`
	CandidateRuin  float64                `json:"candidate_ruin"`
	ActiveRuin     float64                `json:"active_ruin"`
	RejectReason   string                 `json:"reject_reason,omitempty"`
	WalkForward    *walkforward.Job       `json:"-"`
}

// keyState serializes evaluation and promotion per key.
type keyState struct {
	mu           sync.Mutex // promotion critical section
	state        State
	inflight     bool
	closedTrades int
}

// Controller is the learning state machine. One instance serves many keys;
// cycles for different keys never contend.
type Controller struct {
	registry  *ActiveRegistry
	engine    *backtest.Engine
	optimizer *walkforward.Optimizer
	scorer    tune.Scorer
	audit     AuditLog
	notifier  Notifier
	cfg       Config

	mu   sync.Mutex
	keys map[string]*keyState
	now  func() time.Time
}

// NewController wires the learning pipeline. notifier may be nil
// (defaulting to the log sink).
func NewController(registry *ActiveRegistry, engine *backtest.Engine, optimizer *walkforward.Optimizer, scorer tune.Scorer, audit AuditLog, notifier Notifier, cfg Config) *Controller {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Controller{
		registry:  registry,
		engine:    engine,
		optimizer: optimizer,
		scorer:    scorer,
		audit:     audit,
		notifier:  notifier,
		cfg:       cfg,
		keys:      make(map[string]*keyState),
		now:       time.Now,
	}
}

// SetClock overrides the time source (for tests).
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// EvalInterval is the configured cadence for interval-based triggers.
// Schedulers without an explicit per-key interval fall back to it.
func (c *Controller) EvalInterval() time.Duration { return c.cfg.EvalInterval }

// State returns the current lifecycle state for key.
func (c *Controller) State(key Key) State {
	ks := c.keyState(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.state == "" {
		return StateIdle
	}
	return ks.state
}

func (c *Controller) keyState(key Key) *keyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks, ok := c.keys[key.String()]
	if !ok {
		ks = &keyState{state: StateIdle}
		c.keys[key.String()] = ks
	}
	return ks
}

// Bootstrap installs an initial active config for key without evaluation.
// Intended for first deployment; subsequent transitions go through cycles.
func (c *Controller) Bootstrap(ctx context.Context, key Key, cfg domain.StrategyConfig) error {
	ks := c.keyState(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := c.registry.Active(key); ok {
		return fmt.Errorf("key %s already has an active config", key)
	}
	entry := newAuditEntry(key, OutcomePromoted, "bootstrap", domain.PerformanceMetrics{})
	entry.NewConfigID = cfg.ID
	if err := c.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	if err := c.registry.Commit(key, cfg, c.registry.Version(key)); err != nil {
		return err
	}
	metrics.ActiveConfigVersion.WithLabelValues(key.String()).Set(float64(cfg.Version))
	return nil
}

// RecordTradeClosed counts a newly closed live trade for key and starts an
// evaluation cycle in the background once the configured count is reached.
func (c *Controller) RecordTradeClosed(key Key) bool {
	ks := c.keyState(key)
	ks.mu.Lock()
	ks.closedTrades++
	fire := c.cfg.RetuneEveryNTrades > 0 && ks.closedTrades >= c.cfg.RetuneEveryNTrades && !ks.inflight
	if fire {
		ks.closedTrades = 0
	}
	ks.mu.Unlock()

	if fire {
		go func() {
			if _, err := c.Trigger(context.Background(), key, TriggerTradeCount); err != nil {
				log.Warn().Str("key", key.String()).Err(err).Msg("trade-count triggered cycle failed")
			}
		}()
	}
	return fire
}

// Trigger runs one evaluation cycle for key. Concurrent triggers for the
// same key coalesce: the second caller gets a Coalesced result and no new
// cycle starts. Cycles for different keys run independently.
func (c *Controller) Trigger(ctx context.Context, key Key, reason TriggerReason) (*CycleResult, error) {
	ks := c.keyState(key)

	ks.mu.Lock()
	if ks.inflight {
		ks.mu.Unlock()
		log.Debug().Str("key", key.String()).Str("reason", string(reason)).Msg("trigger coalesced into in-flight cycle")
		return &CycleResult{Key: key, Reason: reason, Coalesced: true}, nil
	}
	ks.inflight = true
	ks.state = StateTriggered
	ks.mu.Unlock()

	defer func() {
		ks.mu.Lock()
		ks.inflight = false
		ks.state = StateIdle
		ks.closedTrades = 0
		ks.mu.Unlock()
	}()

	result, err := c.runCycle(ctx, ks, key, reason)
	if err != nil {
		// A failed cycle degrades to IDLE with an audit entry; the active
		// config is untouched.
		entry := newAuditEntry(key, OutcomeFailed, err.Error(), domain.PerformanceMetrics{})
		if aerr := c.audit.Append(ctx, entry); aerr != nil {
			log.Error().Str("key", key.String()).Err(aerr).Msg("audit append failed for failed cycle")
		}
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return &CycleResult{Key: key, Reason: reason, Outcome: OutcomeFailed}, err
	}
	return result, nil
}

// runCycle executes walk-forward search, Monte Carlo stress and the
// promotion decision.
func (c *Controller) runCycle(ctx context.Context, ks *keyState, key Key, reason TriggerReason) (*CycleResult, error) {
	ks.mu.Lock()
	ks.state = StateEvaluating
	ks.mu.Unlock()

	result := &CycleResult{Key: key, Reason: reason}
	now := c.now().UTC()
	history := domain.TimeRange{From: now.Add(-c.cfg.HistorySpan), To: now}

	active, hasActive := c.registry.Active(key)
	decisionVersion := c.registry.Version(key)
	base := active
	if !hasActive {
		base = domain.DefaultStrategyConfig(key.Symbol)
	}

	log.Info().
		Str("key", key.String()).
		Str("reason", string(reason)).
		Bool("has_active", hasActive).
		Msg("evaluation cycle started")

	job, err := c.optimizer.Run(ctx, key.Symbol, c.cfg.Timeframe, history, base)
	if err != nil {
		return nil, fmt.Errorf("walk-forward: %w", err)
	}
	result.WalkForward = job

	if job.BestConfig == nil || job.OutOfSample.TotalTrades < c.cfg.MinTradeSupport {
		return c.reject(ctx, result, active, hasActive,
			fmt.Sprintf("insufficient out-of-sample support: %d < %d trades", job.OutOfSample.TotalTrades, c.cfg.MinTradeSupport))
	}
	result.Candidate = job.BestConfig
	result.CandidateScore = job.RobustnessScore

	mcCfg := c.cfg.MonteCarlo
	mcCfg.InitialCapital = c.cfg.InitialCapital
	candMC, err := montecarlo.Simulate(job.OOSTrades, mcCfg)
	if err != nil {
		return nil, fmt.Errorf("monte carlo (candidate): %w", err)
	}
	result.CandidateRuin = candMC.RuinProbability

	if hasActive {
		activeScore, activeRuin, err := c.evaluateActive(ctx, key, active, history, mcCfg)
		if err != nil {
			return nil, fmt.Errorf("active baseline: %w", err)
		}
		result.ActiveScore = activeScore
		result.ActiveRuin = activeRuin

		if result.CandidateScore <= activeScore+c.cfg.PromotionMargin {
			return c.reject(ctx, result, active, hasActive,
				fmt.Sprintf("objective %.4f not better than active %.4f by margin %.4f",
					result.CandidateScore, activeScore, c.cfg.PromotionMargin))
		}
		if result.CandidateRuin > activeRuin+c.cfg.RuinTolerance {
			return c.reject(ctx, result, active, hasActive,
				fmt.Sprintf("ruin probability %.4f exceeds active %.4f + tolerance %.4f",
					result.CandidateRuin, activeRuin, c.cfg.RuinTolerance))
		}
	}

	return c.promote(ctx, ks, result, key, active, hasActive, decisionVersion, job.OutOfSample)
}

// evaluateActive scores the currently active config over the same history
// so the comparison is like-for-like.
func (c *Controller) evaluateActive(ctx context.Context, key Key, active domain.StrategyConfig, history domain.TimeRange, mcCfg montecarlo.Config) (score, ruin float64, err error) {
	run, err := c.engine.Run(ctx, backtest.Request{
		Symbol:         key.Symbol,
		Timeframe:      c.cfg.Timeframe,
		Range:          history,
		Config:         active,
		InitialCapital: c.cfg.InitialCapital,
	})
	if err != nil {
		return 0, 0, err
	}
	score = c.scorer.Score(run.Metrics)
	if len(run.Trades) == 0 {
		return score, 0, nil
	}
	mc, err := montecarlo.Simulate(run.Trades, mcCfg)
	if err != nil {
		return 0, 0, err
	}
	return score, mc.RuinProbability, nil
}

// promote atomically swaps the active config and writes the audit entry in
// the same critical section: both happen or neither does. A version
// conflict is retried once with fresh state, then surfaced as a rejection.
func (c *Controller) promote(ctx context.Context, ks *keyState, result *CycleResult, key Key, active domain.StrategyConfig, hasActive bool, decisionVersion uint64, oos domain.PerformanceMetrics) (*CycleResult, error) {
	cand := *result.Candidate

	for attempt := 0; attempt < 2; attempt++ {
		ks.mu.Lock()
		current := c.registry.Version(key)
		if current != decisionVersion {
			// Someone else promoted since we decided. Refresh once; if the
			// active config actually changed, the comparison is stale.
			fresh, _ := c.registry.Active(key)
			if hasActive && fresh.ID != active.ID {
				ks.mu.Unlock()
				return c.reject(ctx, result, fresh, true, domain.ErrPromotionConflict.Error())
			}
			decisionVersion = current
			ks.mu.Unlock()
			continue
		}

		entry := newAuditEntry(key, OutcomePromoted, string(result.Reason), oos)
		if hasActive {
			entry.PreviousConfigID = active.ID
		}
		entry.NewConfigID = cand.ID
		if err := c.audit.Append(ctx, entry); err != nil {
			ks.mu.Unlock()
			return nil, fmt.Errorf("audit append: %w", err)
		}
		if err := c.registry.Commit(key, cand, decisionVersion); err != nil {
			// Unreachable while all writers honour the key lock; surface it
			// rather than leaving the audit trail ahead of the registry.
			ks.mu.Unlock()
			return nil, err
		}
		ks.mu.Unlock()

		result.Outcome = OutcomePromoted
		metrics.CyclesTotal.WithLabelValues("promoted").Inc()
		metrics.ActiveConfigVersion.WithLabelValues(key.String()).Set(float64(cand.Version))

		event := Event{
			Type:        EventConfigPromoted,
			Symbol:      key.Symbol,
			MarketType:  key.MarketType,
			NewConfigID: cand.ID,
			Metrics:     oos,
			Timestamp:   c.now().UTC(),
		}
		if hasActive {
			event.OldConfigID = active.ID
		}
		go c.notifier.Publish(event)

		log.Info().
			Str("key", key.String()).
			Str("new_config", cand.ID).
			Float64("candidate_score", result.CandidateScore).
			Float64("active_score", result.ActiveScore).
			Msg("candidate promoted")
		return result, nil
	}

	return c.reject(ctx, result, active, hasActive, domain.ErrPromotionConflict.Error())
}

// reject records a rejection with its reason and emits the event.
func (c *Controller) reject(ctx context.Context, result *CycleResult, active domain.StrategyConfig, hasActive bool, reason string) (*CycleResult, error) {
	result.Outcome = OutcomeRejected
	result.RejectReason = reason

	var m domain.PerformanceMetrics
	if result.WalkForward != nil {
		m = result.WalkForward.OutOfSample
	}
	entry := newAuditEntry(result.Key, OutcomeRejected, reason, m)
	if hasActive {
		entry.PreviousConfigID = active.ID
	}
	if result.Candidate != nil {
		entry.NewConfigID = result.Candidate.ID
	}
	if err := c.audit.Append(ctx, entry); err != nil {
		log.Error().Str("key", result.Key.String()).Err(err).Msg("audit append failed for rejection")
	}
	metrics.CyclesTotal.WithLabelValues("rejected").Inc()

	event := Event{
		Type:       EventConfigRejected,
		Symbol:     result.Key.Symbol,
		MarketType: result.Key.MarketType,
		Reason:     reason,
		Metrics:    m,
		Timestamp:  c.now().UTC(),
	}
	if hasActive {
		event.OldConfigID = active.ID
	}
	if result.Candidate != nil {
		event.NewConfigID = result.Candidate.ID
	}
	go c.notifier.Publish(event)

	log.Info().Str("key", result.Key.String()).Str("reason", reason).Msg("candidate rejected")
	return result, nil
}
