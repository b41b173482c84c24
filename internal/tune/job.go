package tune

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantforge/adaptive/internal/domain"
)

// Sample is one evaluated candidate. PredictedScore is set when a surrogate
// proposed the candidate; ActualScore only after real evaluation. The pair
// enables later calibration analysis.
type Sample struct {
	Config         domain.StrategyConfig     `json:"config"`
	PredictedScore *float64                  `json:"predicted_score,omitempty"`
	ActualScore    *float64                  `json:"actual_score,omitempty"`
	Metrics        domain.PerformanceMetrics `json:"metrics"`
	Excluded       bool                      `json:"excluded"` // insufficient sample or failed run
	Error          string                    `json:"error,omitempty"`
}

// Job tracks one parameter-search execution. Partial results remain
// queryable while the job is RUNNING.
type Job struct {
	ID        string           `json:"id"`
	Space     Space            `json:"search_space"`
	Mode      string           `json:"mode"` // grid or guided
	CreatedAt time.Time        `json:"created_at"`
	EndedAt   time.Time        `json:"ended_at"`
	mu        sync.RWMutex
	status    domain.RunStatus
	samples   []Sample
	best      *Sample
	failure   string
}

// newJob creates a PENDING job over the space.
func newJob(space Space, mode string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Space:     space,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
		status:    domain.StatusPending,
	}
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() domain.RunStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Failure returns the recorded failure reason, if any.
func (j *Job) Failure() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.failure
}

// Samples returns a snapshot of the samples recorded so far.
func (j *Job) Samples() []Sample {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Sample, len(j.samples))
	copy(out, j.samples)
	return out
}

// Best returns the current best sample, or nil before any candidate
// qualifies.
func (j *Job) Best() *Sample {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.best == nil {
		return nil
	}
	cp := *j.best
	return &cp
}

func (j *Job) setStatus(s domain.RunStatus) {
	j.mu.Lock()
	j.status = s
	if s == domain.StatusCompleted || s == domain.StatusFailed {
		j.EndedAt = time.Now().UTC()
	}
	j.mu.Unlock()
}

func (j *Job) fail(reason string) {
	j.mu.Lock()
	j.status = domain.StatusFailed
	j.failure = reason
	j.EndedAt = time.Now().UTC()
	j.mu.Unlock()
}

// record appends a sample and re-ranks the best under the scorer.
func (j *Job) record(s Sample, scorer Scorer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.samples = append(j.samples, s)
	if s.Excluded || s.ActualScore == nil {
		return
	}
	if j.best == nil || Better(*s.ActualScore, s.Metrics, *j.best.ActualScore, j.best.Metrics) {
		cp := s
		j.best = &cp
	}
}
