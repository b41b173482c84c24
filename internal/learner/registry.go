package learner

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quantforge/adaptive/internal/domain"
)

// Key identifies an active-config slot: one strategy deployment per
// symbol/market-type pair.
type Key struct {
	Symbol     string `json:"symbol"`
	MarketType string `json:"market_type"`
}

func (k Key) String() string {
	return k.Symbol + "/" + k.MarketType
}

// snapshot is the committed value readers observe. Immutable once
// published.
type snapshot struct {
	cfg     domain.StrategyConfig
	version uint64
}

// ActiveRegistry holds the process-wide active configuration per key.
// Reads are lock-free pointer loads of the last committed snapshot; writes
// go through Commit, which the controller serializes per key.
type ActiveRegistry struct {
	mu    sync.Mutex // guards the map shape only
	slots map[string]*atomic.Pointer[snapshot]
}

// NewActiveRegistry returns an empty registry.
func NewActiveRegistry() *ActiveRegistry {
	return &ActiveRegistry{slots: make(map[string]*atomic.Pointer[snapshot])}
}

func (r *ActiveRegistry) slot(key Key) *atomic.Pointer[snapshot] {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key.String()]
	if !ok {
		s = &atomic.Pointer[snapshot]{}
		r.slots[key.String()] = s
	}
	return s
}

// Active returns the current config for key. Readers never observe a
// partially updated value.
func (r *ActiveRegistry) Active(key Key) (domain.StrategyConfig, bool) {
	snap := r.slot(key).Load()
	if snap == nil {
		return domain.StrategyConfig{}, false
	}
	return snap.cfg, true
}

// Version returns the commit counter for key; zero means no config has
// ever been committed.
func (r *ActiveRegistry) Version(key Key) uint64 {
	snap := r.slot(key).Load()
	if snap == nil {
		return 0
	}
	return snap.version
}

// Commit installs cfg as the active config for key iff the slot is still
// at expectVersion. A stale expectation means a concurrent promotion won.
func (r *ActiveRegistry) Commit(key Key, cfg domain.StrategyConfig, expectVersion uint64) error {
	slot := r.slot(key)
	old := slot.Load()
	var current uint64
	if old != nil {
		current = old.version
	}
	if current != expectVersion {
		return fmt.Errorf("%w: key %s at version %d, expected %d", domain.ErrPromotionConflict, key, current, expectVersion)
	}
	next := &snapshot{cfg: cfg, version: current + 1}
	if !slot.CompareAndSwap(old, next) {
		return fmt.Errorf("%w: key %s raced during commit", domain.ErrPromotionConflict, key)
	}
	return nil
}
