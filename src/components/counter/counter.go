// Package counter tracks how many suggestions each guild has, which doubles
// as the source of the next sequential suggestion id. The durable row count is
// authoritative; a per-guild cache avoids a store round-trip on every creation
// once warm, and concurrent cold lookups collapse into a single query.
package counter

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store is the durable source of truth.
type Store interface {
	CountSuggestions(ctx context.Context, guildID uint64) (int64, error)
}

type Counter struct {
	store Store
	group singleflight.Group

	mu     sync.RWMutex
	counts map[uint64]uint32
}

func New(store Store) *Counter {
	return &Counter{store: store, counts: make(map[uint64]uint32)}
}

// Current returns the guild's suggestion count, querying the store on a cache
// miss. Concurrent misses for the same guild share one query.
func (c *Counter) Current(ctx context.Context, guildID uint64) (uint32, error) {
	c.mu.RLock()
	n, ok := c.counts[guildID]
	c.mu.RUnlock()
	if ok {
		return n, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(guildID, 10), func() (interface{}, error) {
		count, err := c.store.CountSuggestions(ctx, guildID)
		if err != nil {
			return nil, err
		}
		n := uint32(count)
		c.mu.Lock()
		c.counts[guildID] = n
		c.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

// NextID returns the id the next created suggestion will take. Only meaningful
// while the caller holds the guild's creation lock.
func (c *Counter) NextID(ctx context.Context, guildID uint64) (uint32, error) {
	n, err := c.Current(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// Bump increments the cached count after a successful creation. Creation is
// already serialized per guild, so no re-query is needed. A cold cache is left
// cold: the next Current will read the already-updated durable count.
func (c *Counter) Bump(guildID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.counts[guildID]; ok {
		c.counts[guildID] = n + 1
	}
}

// Forget drops the cached count for a guild.
func (c *Counter) Forget(guildID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, guildID)
}
