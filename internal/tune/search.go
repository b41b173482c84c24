package tune

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/metrics"
)

// Mode selects the search procedure.
type Mode string

const (
	ModeGrid   Mode = "grid"
	ModeGuided Mode = "guided"
)

// Config controls a Searcher.
type Config struct {
	Mode            Mode `yaml:"mode"`
	Concurrency     int  `yaml:"concurrency"`       // parallel backtests per job
	MinTrades       int  `yaml:"min_trades"`        // below this a sample is excluded
	MinHistory      int  `yaml:"min_history"`       // guided falls back to grid below this
	MaxGuidedRounds int  `yaml:"max_guided_rounds"` // hill-climb iteration budget
}

// DefaultConfig returns the baseline search configuration.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeGrid,
		Concurrency:     4,
		MinTrades:       10,
		MinHistory:      20,
		MaxGuidedRounds: 8,
	}
}

// Predictor is an optional cheap surrogate scorer; its estimates are
// recorded alongside the actual backtested score.
type Predictor interface {
	Predict(cfg domain.StrategyConfig) (float64, bool)
}

// Searcher evaluates candidate configs through the backtest engine and
// ranks them under a scalar objective.
type Searcher struct {
	engine    *backtest.Engine
	scorer    Scorer
	cfg       Config
	surrogate Predictor
}

// NewSearcher builds a searcher. surrogate may be nil.
func NewSearcher(engine *backtest.Engine, scorer Scorer, cfg Config, surrogate Predictor) *Searcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Searcher{engine: engine, scorer: scorer, cfg: cfg, surrogate: surrogate}
}

// Target fixes the data coordinates candidates are evaluated against.
type Target struct {
	Symbol    string
	Timeframe domain.Timeframe
	Range     domain.TimeRange
}

// Run executes one search job. history carries previously evaluated samples
// (typically from earlier jobs) and gates the guided mode: with fewer than
// MinHistory entries the search degrades to exhaustive grid. The returned
// job is terminal unless the context was cancelled mid-flight, in which
// case it is FAILED with partial samples retained.
func (s *Searcher) Run(ctx context.Context, target Target, base domain.StrategyConfig, space Space, history []Sample) (*Job, error) {
	mode := s.cfg.Mode
	if mode == ModeGuided && len(history) < s.cfg.MinHistory {
		log.Debug().Int("history", len(history)).Int("min", s.cfg.MinHistory).Msg("guided search falling back to grid")
		mode = ModeGrid
	}

	job := newJob(space, string(mode))
	job.setStatus(domain.StatusRunning)

	var err error
	switch mode {
	case ModeGuided:
		err = s.runGuided(ctx, job, target, base, space, history)
	default:
		err = s.runGrid(ctx, job, target, base, space)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCancelled) {
			job.fail(domain.ErrCancelled.Error())
			return job, fmt.Errorf("%w: search job %s", domain.ErrCancelled, job.ID)
		}
		job.fail(err.Error())
		return job, err
	}

	if job.Best() == nil {
		job.fail(domain.ErrInsufficientSample.Error())
		return job, fmt.Errorf("%w: no candidate with >= %d trades", domain.ErrInsufficientSample, s.cfg.MinTrades)
	}
	job.setStatus(domain.StatusCompleted)
	return job, nil
}

// runGrid exhaustively evaluates the cartesian product.
func (s *Searcher) runGrid(ctx context.Context, job *Job, target Target, base domain.StrategyConfig, space Space) error {
	configs, err := space.Enumerate(base)
	if err != nil {
		return err
	}
	return s.evaluateBatch(ctx, job, target, configs)
}

// runGuided hill-climbs from the best historical sample (or base), probing
// one step per parameter each round and moving while the objective
// improves.
func (s *Searcher) runGuided(ctx context.Context, job *Job, target Target, base domain.StrategyConfig, space Space, history []Sample) error {
	current := base
	if seed := bestOf(history); seed != nil {
		current = seed.Config
	}

	if err := s.evaluateBatch(ctx, job, target, []domain.StrategyConfig{current}); err != nil {
		return err
	}

	for round := 0; round < s.cfg.MaxGuidedRounds; round++ {
		// Cancellation is checked at sample boundaries only.
		if err := ctx.Err(); err != nil {
			return err
		}
		before := job.Best()
		neighbors := s.neighbors(current, space)
		if len(neighbors) == 0 {
			break
		}
		if err := s.evaluateBatch(ctx, job, target, neighbors); err != nil {
			return err
		}
		after := job.Best()
		if after == nil || (before != nil && after.Config.ID == before.Config.ID) {
			break // no improving neighbor
		}
		current = after.Config
	}
	return nil
}

// neighbors produces one step up and down per searchable parameter, clamped
// to the space bounds.
func (s *Searcher) neighbors(cfg domain.StrategyConfig, space Space) []domain.StrategyConfig {
	var out []domain.StrategyConfig
	for _, name := range space.Names() {
		r := space[name]
		step := r.Step
		if step <= 0 {
			continue
		}
		cur := paramValue(cfg, name)
		for _, v := range []float64{cur - step, cur + step} {
			if v < r.Min || v > r.Max {
				continue
			}
			v := v
			name := name
			out = append(out, cfg.Derive(func(c *domain.StrategyConfig) {
				_ = applyParam(c, name, v)
			}))
		}
	}
	return out
}

// evaluateBatch scores configs through the backtest engine on a bounded
// worker set. Individual failures exclude the sample, never the batch.
func (s *Searcher) evaluateBatch(ctx context.Context, job *Job, target Target, configs []domain.StrategyConfig) error {
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, cfg := range configs {
		// Sample boundary: stop dispatching once cancelled.
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(cfg domain.StrategyConfig) {
			defer wg.Done()
			defer func() { <-sem }()
			job.record(s.evaluate(ctx, target, cfg), s.scorer)
			metrics.TuningSamplesTotal.Inc()
		}(cfg)
	}
	wg.Wait()
	return ctx.Err()
}

// evaluate runs one candidate and reduces it to a Sample.
func (s *Searcher) evaluate(ctx context.Context, target Target, cfg domain.StrategyConfig) Sample {
	sample := Sample{Config: cfg}
	if s.surrogate != nil {
		if pred, ok := s.surrogate.Predict(cfg); ok {
			sample.PredictedScore = &pred
		}
	}

	run, err := s.engine.Run(ctx, backtest.Request{
		Symbol:    target.Symbol,
		Timeframe: target.Timeframe,
		Range:     target.Range,
		Config:    cfg,
	})
	if err != nil {
		sample.Excluded = true
		sample.Error = err.Error()
		return sample
	}

	sample.Metrics = run.Metrics
	score := s.scorer.Score(run.Metrics)
	sample.ActualScore = &score
	if run.Metrics.TotalTrades < s.cfg.MinTrades {
		sample.Excluded = true
		sample.Error = domain.ErrInsufficientSample.Error()
	}
	return sample
}

// bestOf ranks historical samples by their recorded actual score.
func bestOf(history []Sample) *Sample {
	var best *Sample
	for i := range history {
		h := &history[i]
		if h.Excluded || h.ActualScore == nil {
			continue
		}
		if best == nil || Better(*h.ActualScore, h.Metrics, *best.ActualScore, best.Metrics) {
			best = h
		}
	}
	return best
}
