// Package cache provides a TTL query cache with capacity-bounded
// insertion, pattern-based invalidation and a periodic sweep. The cache
// is strictly a performance layer: removing it never changes the result
// of a read, only its latency.
package cache

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// entry is one cached value with its insertion time and lifetime.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// expired reports whether the entry has outlived its TTL at time now.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Cache is a capacity-bounded TTL cache keyed by string.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	capacity   int
	defaultTTL time.Duration
}

// New creates a Cache holding at most capacity entries, each living for
// defaultTTL unless set with an explicit TTL.
func New(capacity int, defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		capacity:   capacity,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached value for key. An entry past its TTL is lazily
// evicted and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. At capacity, the
// oldest entry is evicted first to make room.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{value: value, insertedAt: time.Now(), ttl: ttl}
}

// evictOldestLocked removes the entry with the earliest insertion time.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes the entry for key immediately.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateByPattern removes every entry whose key matches re and
// returns how many were removed.
func (c *Cache) InvalidateByPattern(re *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if re.MatchString(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, including any that
// expired but have not been evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes all expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartSweeper proactively removes expired entries with the given
// interval until ctx is cancelled. The caller owns the lifecycle; no
// ambient global timer is started.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 {
					log.Debug("swept expired cache entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// Fetch returns the cached value for key, or runs fn and caches its
// result for ttl. Concurrent misses for the same key are NOT
// deduplicated: two simultaneous callers both hit the backing store.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if cached, ok := c.Get(key); ok {
		if v, ok := cached.(T); ok {
			return v, nil
		}
	}

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.SetTTL(key, v, ttl)
	return v, nil
}
