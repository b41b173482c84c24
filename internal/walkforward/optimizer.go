package walkforward

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/tune"
)

// JobStatus is the walk-forward job lifecycle.
type JobStatus string

const (
	JobCreated     JobStatus = "CREATED"
	JobRunning     JobStatus = "RUNNING"
	JobAggregating JobStatus = "AGGREGATING"
	JobCompleted   JobStatus = "COMPLETED"
	JobFailed      JobStatus = "FAILED"
)

// Job is one walk-forward optimization over a symbol and range. The job
// owns its ordered window sequence.
type Job struct {
	ID              string                    `json:"id"`
	Symbol          string                    `json:"symbol"`
	Timeframe       domain.Timeframe          `json:"timeframe"`
	Range           domain.TimeRange          `json:"range"`
	Status          JobStatus                 `json:"status"`
	Windows         []Window                  `json:"windows"`
	OutOfSample     domain.PerformanceMetrics `json:"out_of_sample"`
	RobustnessScore float64                   `json:"robustness_score"`
	BestConfig      *domain.StrategyConfig    `json:"best_config,omitempty"`
	OOSTrades       []domain.SimulatedTrade   `json:"-"`
	Error           string                    `json:"error,omitempty"`
	StartedAt       time.Time                 `json:"started_at"`
	EndedAt         time.Time                 `json:"ended_at"`
}

// Config controls the optimizer.
type Config struct {
	Split          SplitConfig `yaml:"split"`
	MinTrainTrades int         `yaml:"min_train_trades"` // below this a window is degenerate
	Concurrency    int         `yaml:"concurrency"`      // parallel windows
	InitialCapital float64     `yaml:"initial_capital"`
}

// DefaultConfig returns 30d/7d rolling windows.
func DefaultConfig() Config {
	return Config{
		Split:          SplitConfig{TrainSpan: 30 * 24 * time.Hour, TestSpan: 7 * 24 * time.Hour},
		MinTrainTrades: 10,
		Concurrency:    4,
		InitialCapital: 10_000,
	}
}

// Optimizer derives a candidate per train window via the parameter search
// and evaluates it once, out of sample, on the following test window.
type Optimizer struct {
	engine   *backtest.Engine
	searcher *tune.Searcher
	scorer   tune.Scorer
	space    tune.Space
	cfg      Config
}

// NewOptimizer wires the walk-forward harness.
func NewOptimizer(engine *backtest.Engine, searcher *tune.Searcher, scorer tune.Scorer, space tune.Space, cfg Config) *Optimizer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Optimizer{engine: engine, searcher: searcher, scorer: scorer, space: space, cfg: cfg}
}

// Run executes the full walk-forward job. A single window's failure never
// aborts the job; the job fails overall only when a majority of windows
// fail. Cancellation is honoured at window boundaries and preserves partial
// results.
func (o *Optimizer) Run(ctx context.Context, symbol string, tf domain.Timeframe, tr domain.TimeRange, base domain.StrategyConfig) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Timeframe: tf,
		Range:     tr,
		Status:    JobCreated,
		StartedAt: time.Now().UTC(),
	}

	windows, err := Split(tr, o.cfg.Split)
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		job.EndedAt = time.Now().UTC()
		return job, err
	}
	job.Windows = windows
	job.Status = JobRunning

	log.Info().
		Str("job", job.ID).
		Str("symbol", symbol).
		Int("windows", len(windows)).
		Str("range", tr.String()).
		Msg("walk-forward job started")

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	cancelled := false
	for i := range job.Windows {
		// Window boundary: stop dispatching once cancelled; windows already
		// in flight finish and their results are retained.
		if ctx.Err() != nil {
			cancelled = true
			for j := i; j < len(job.Windows); j++ {
				job.Windows[j].Status = WindowFailed
				job.Windows[j].Error = domain.ErrCancelled.Error()
			}
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(w *Window) {
			defer wg.Done()
			defer func() { <-sem }()
			o.processWindow(ctx, symbol, tf, base, w)
		}(&job.Windows[i])
	}
	wg.Wait()

	if cancelled {
		job.Status = JobFailed
		job.Error = domain.ErrCancelled.Error()
		o.aggregate(job)
		job.EndedAt = time.Now().UTC()
		return job, fmt.Errorf("%w: walk-forward job %s", domain.ErrCancelled, job.ID)
	}

	job.Status = JobAggregating
	o.aggregate(job)

	failed := 0
	for _, w := range job.Windows {
		if w.Status == WindowFailed {
			failed++
		}
	}
	if failed*2 > len(job.Windows) {
		job.Status = JobFailed
		job.Error = fmt.Sprintf("%d of %d windows failed", failed, len(job.Windows))
		job.EndedAt = time.Now().UTC()
		return job, errors.New(job.Error)
	}

	job.Status = JobCompleted
	job.EndedAt = time.Now().UTC()
	log.Info().
		Str("job", job.ID).
		Float64("robustness", job.RobustnessScore).
		Int("oos_trades", job.OutOfSample.TotalTrades).
		Int("failed_windows", failed).
		Msg("walk-forward job completed")
	return job, nil
}

// processWindow searches the train range and evaluates the winner on the
// test range. Only the out-of-sample result counts toward aggregation.
func (o *Optimizer) processWindow(ctx context.Context, symbol string, tf domain.Timeframe, base domain.StrategyConfig, w *Window) {
	w.Status = WindowOptimizingTrain

	searchJob, err := o.searcher.Run(ctx, tune.Target{Symbol: symbol, Timeframe: tf, Range: w.Train}, base, o.space, nil)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientSample) {
			// Too little train activity to pick a config: degenerate, not fatal.
			w.Status = WindowCompleted
			w.Degenerate = true
			w.Error = err.Error()
			return
		}
		w.Status = WindowFailed
		w.Error = err.Error()
		return
	}

	best := searchJob.Best()
	w.DerivedConfig = &best.Config
	w.InSample = best.Metrics
	if best.Metrics.TotalTrades < o.cfg.MinTrainTrades {
		w.Degenerate = true
	}

	w.Status = WindowTesting
	run, err := o.engine.Run(ctx, backtest.Request{
		Symbol:         symbol,
		Timeframe:      tf,
		Range:          w.Test,
		Config:         best.Config,
		InitialCapital: o.cfg.InitialCapital,
	})
	if err != nil {
		w.Status = WindowFailed
		w.Error = err.Error()
		return
	}

	w.OutOfSample = run.Metrics
	w.OOSTrades = run.Trades
	w.Status = WindowCompleted
}

// aggregate pools out-of-sample trades across non-degenerate completed
// windows (trade-weighted by construction) and scores the pooled result.
// The most recent window's derived config becomes the job's candidate.
func (o *Optimizer) aggregate(job *Job) {
	var pooled []domain.SimulatedTrade
	for _, w := range job.Windows {
		if w.Status != WindowCompleted || w.Degenerate {
			continue
		}
		pooled = append(pooled, w.OOSTrades...)
		if w.DerivedConfig != nil {
			job.BestConfig = w.DerivedConfig
		}
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].EntryTime.Before(pooled[j].EntryTime) })
	job.OOSTrades = pooled
	job.OutOfSample = backtest.PoolMetrics(pooled, o.cfg.InitialCapital, job.Range)
	job.RobustnessScore = o.scorer.Score(job.OutOfSample)
}
