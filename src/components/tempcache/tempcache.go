// Package tempcache provides a small bounded-TTL map with a background
// eviction sweep. The sweeper only runs while the cache holds entries, so an
// idle cache costs nothing; memory is bounded by currently live keys.
package tempcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	expiresAt time.Time
	value     V
}

// Cache maps keys to values that expire maxAge after being set.
type Cache[K comparable, V any] struct {
	maxAge     time.Duration
	sweepEvery time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[K]entry[V]
	stop    chan struct{}
}

// New creates a cache whose entries live for maxAge and are swept out every
// sweepEvery once expired.
func New[K comparable, V any](maxAge, sweepEvery time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		maxAge:     maxAge,
		sweepEvery: sweepEvery,
		now:        time.Now,
		entries:    make(map[K]entry[V]),
	}
}

// WithClock replaces the time source. Used by tests to expire entries
// deterministically.
func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.now = now
	return c
}

// Get returns the live value for key. Expired entries are removed on access.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.After(c.now()) {
		c.deleteLocked(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL and returns it.
func (c *Cache[K, V]) Set(key K, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{expiresAt: c.now().Add(c.maxAge), value: value}
	c.startLocked()
	return value
}

// Delete removes key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

// Ensure returns the cached value for key, computing and storing it via fn on
// a miss. Concurrent misses for the same key may both invoke fn; callers that
// need single-flight semantics dedupe upstream.
func (c *Cache[K, V]) Ensure(key K, fn func(K) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn(key)
	if err != nil {
		var zero V
		return zero, err
	}
	return c.Set(key, v), nil
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweeping reports whether the background sweeper is running.
func (c *Cache[K, V]) Sweeping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Cache[K, V]) deleteLocked(key K) {
	delete(c.entries, key)
	if len(c.entries) == 0 {
		c.stopLocked()
	}
}

func (c *Cache[K, V]) startLocked() {
	if c.stop != nil {
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	go c.sweep(stop)
}

func (c *Cache[K, V]) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
}

func (c *Cache[K, V]) sweep(stop chan struct{}) {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Cache[K, V]) sweepOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) == 0 {
		c.stopLocked()
	}
}
