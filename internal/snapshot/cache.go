// Package snapshot caches the last to_frame result per symbol so the HTTP
// surface doesn't recompute indicators on every request. Adapted from the
// teacher's dual in-memory/Redis Cache interface.
package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sawpanic/czsc/internal/analyzer"
)

// Store caches analyzer.Snapshot values, keyed by symbol, for cache_ttl_secs
// (czscfg.SnapshotConfig). Implementations must be safe for concurrent use.
type Store interface {
	Get(symbol string) (analyzer.Snapshot, bool)
	Set(symbol string, snap analyzer.Snapshot, ttl time.Duration)
}

type memoryStore struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

type memoryEntry struct {
	snap analyzer.Snapshot
	exp  time.Time
}

// NewMemoryStore creates an in-process snapshot cache.
func NewMemoryStore() Store {
	return &memoryStore{m: make(map[string]memoryEntry)}
}

func (c *memoryStore) Get(symbol string) (analyzer.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[symbol]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return analyzer.Snapshot{}, false
	}
	return e.snap, true
}

func (c *memoryStore) Set(symbol string, snap analyzer.Snapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{snap: snap}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[symbol] = e
}

// redisStore serializes snapshots as JSON into Redis, for multi-process
// deployments where internal/httpapi runs separately from the poller.
type redisStore struct {
	r *redis.Client
}

// NewRedisStore builds a Redis-backed snapshot store.
func NewRedisStore(addr string) Store {
	return &redisStore{r: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewAuto selects NewRedisStore when addr is non-empty (typically sourced
// from czscfg.SnapshotConfig.RedisAddr or the REDIS_ADDR environment
// variable), otherwise an in-memory store.
func NewAuto(addr string) Store {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		return NewRedisStore(addr)
	}
	return NewMemoryStore()
}

func (r *redisStore) Get(symbol string) (analyzer.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	raw, err := r.r.Get(ctx, snapshotKey(symbol)).Bytes()
	if err != nil {
		return analyzer.Snapshot{}, false
	}
	var snap analyzer.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return analyzer.Snapshot{}, false
	}
	return snap, true
}

func (r *redisStore) Set(symbol string, snap analyzer.Snapshot, ttl time.Duration) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = r.r.Set(ctx, snapshotKey(symbol), raw, ttl).Err()
}

func snapshotKey(symbol string) string {
	return "czsc:snapshot:" + symbol
}
