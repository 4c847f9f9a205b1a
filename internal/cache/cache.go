// Package cache provides a small mutex-guarded TTL cache keyed by game id.
package cache

import (
	"sync"
	"time"
)

// Cache holds values for a fixed time-to-live. Entries are evicted lazily on read.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New creates a cache with the given TTL. A non-positive TTL disables caching.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns the cached value if present and fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Delete drops a key.
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
