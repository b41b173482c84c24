package backtest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache memoizes completed runs keyed by Request.CacheKey. Implementations
// must treat stored runs as immutable.
type Cache interface {
	Get(ctx context.Context, key string) (*Run, bool)
	Put(ctx context.Context, key string, run *Run)
}

// RedisCache stores serialized runs in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache builds a cache over an existing client. ttl <= 0 defaults
// to 24h.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "adaptive:backtest:"}
}

// Get fetches and decodes a cached run. Decode failures are treated as
// misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*Run, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached backtest")
		return nil, false
	}
	return &run, true
}

// Put stores a run; errors are logged, not surfaced — the cache is an
// optimization, never a dependency.
func (c *RedisCache) Put(ctx context.Context, key string, run *Run) {
	raw, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("backtest cache write failed")
	}
}

// MemoryCache is a process-local Cache for tests and single-shot CLI runs.
type MemoryCache struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryCache builds an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{runs: make(map[string]*Run)}
}

// Get returns a shallow copy of the cached run.
func (c *MemoryCache) Get(_ context.Context, key string) (*Run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[key]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}

// Put stores the run under key.
func (c *MemoryCache) Put(_ context.Context, key string, run *Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *run
	c.runs[key] = &cp
}
