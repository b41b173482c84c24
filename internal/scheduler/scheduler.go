// Package scheduler drives periodic evaluation triggers. The engine itself
// only requires that something calls the controller's Trigger; this adapter
// is the built-in interval implementation for standalone deployments.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/learner"
)

// Entry is one scheduled key. A zero Interval falls back to the
// controller's configured evaluation interval.
type Entry struct {
	Key      learner.Key   `yaml:"key"`
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// Scheduler fires interval triggers for a set of keys. Coalescing of
// overlapping triggers is the controller's job; the scheduler just ticks.
type Scheduler struct {
	controller *learner.Controller
	entries    []Entry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewScheduler builds a scheduler over the given entries.
func NewScheduler(controller *learner.Controller, entries []Entry) *Scheduler {
	return &Scheduler{controller: controller, entries: entries}
}

// Start launches one ticker goroutine per enabled entry. Idempotent while
// running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, e := range s.entries {
		if e.Interval <= 0 {
			e.Interval = s.controller.EvalInterval()
		}
		if !e.Enabled || e.Interval <= 0 {
			continue
		}
		s.done.Add(1)
		go s.tick(ctx, e)
	}
	log.Info().Int("entries", len(s.entries)).Msg("evaluation scheduler started")
}

// Stop cancels all tickers and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.done.Wait()
	log.Info().Msg("evaluation scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context, e Entry) {
	defer s.done.Done()
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.controller.Trigger(ctx, e.Key, learner.TriggerInterval); err != nil {
				log.Warn().Str("key", e.Key.String()).Err(err).Msg("interval cycle failed")
			}
		}
	}
}
