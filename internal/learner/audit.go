package learner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantforge/adaptive/internal/domain"
)

// AuditEntry records one active-config transition or rejected/failed
// evaluation cycle. The log is append-only.
type AuditEntry struct {
	ID               string                    `json:"id" db:"id"`
	Key              Key                       `json:"key"`
	PreviousConfigID string                    `json:"previous_config_id,omitempty" db:"previous_config_id"`
	NewConfigID      string                    `json:"new_config_id,omitempty" db:"new_config_id"`
	Outcome          Outcome                   `json:"outcome" db:"outcome"`
	Reason           string                    `json:"reason" db:"reason"`
	Timestamp        time.Time                 `json:"timestamp" db:"ts"`
	Metrics          domain.PerformanceMetrics `json:"triggering_metrics"`
}

// Outcome of an evaluation cycle.
type Outcome string

const (
	OutcomePromoted Outcome = "PROMOTED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomeFailed   Outcome = "FAILED"
)

// AuditLog persists config transitions. Append must be durable before the
// matching registry commit is published.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, key Key) ([]AuditEntry, error)
}

// newAuditEntry stamps identity and time.
func newAuditEntry(key Key, outcome Outcome, reason string, m domain.PerformanceMetrics) AuditEntry {
	return AuditEntry{
		ID:        uuid.New().String(),
		Key:       key,
		Outcome:   outcome,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Metrics:   m,
	}
}

// MemoryAuditLog is the in-process AuditLog used by tests and single-node
// deployments without a database.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	entries map[string][]AuditEntry
}

// NewMemoryAuditLog returns an empty in-memory log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{entries: make(map[string][]AuditEntry)}
}

// Append records the entry.
func (l *MemoryAuditLog) Append(_ context.Context, entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := entry.Key.String()
	l.entries[k] = append(l.entries[k], entry)
	return nil
}

// List returns the history for key, oldest first.
func (l *MemoryAuditLog) List(_ context.Context, key Key) ([]AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.entries[key.String()]
	out := make([]AuditEntry, len(src))
	copy(out, src)
	return out, nil
}
