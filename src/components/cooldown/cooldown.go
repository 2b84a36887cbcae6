// Package cooldown enforces the per-user suggestion cooldown against a shared
// TTL store. The store is the sole source of truth: nothing is cached in
// process, so a restart cannot resurrect or forget an active window.
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the TTL key/value surface the limiter needs.
type Store interface {
	// TTL returns the remaining lifetime of key. Zero or negative means the
	// key does not exist or carries no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// ExpireIfExists rewrites the TTL of key and reports whether the key
	// still existed. A false return means the key expired between a read and
	// this write.
	ExpireIfExists(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Arm creates key with the given TTL.
	Arm(ctx context.Context, key string, ttl time.Duration) error
}

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore adapts a redis client to the Store surface.
func NewRedisStore(rdb *redis.Client) Store {
	return redisStore{rdb: rdb}
}

func (s redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.PTTL(ctx, key).Result()
}

func (s redisStore) ExpireIfExists(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// PEXPIRE only succeeds when the key exists, which is exactly the
	// compare-and-set this needs.
	return s.rdb.PExpire(ctx, key, ttl).Result()
}

func (s redisStore) Arm(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, 1, ttl).Err()
}

// Limiter implements the cooldown check-and-arm.
type Limiter struct {
	store Store
}

func New(store Store) *Limiter {
	return &Limiter{store: store}
}

func key(guildID, userID uint64) string {
	return fmt.Sprintf("suggestions:cooldown:%d:%d", guildID, userID)
}

// Check reports the remaining cooldown for the user, arming a fresh window
// when none is active. A zero return means the caller may proceed.
//
// The configured limit can change between calls. A window longer than the
// current limit is shrunk in place so an admin lowering the cooldown takes
// effect immediately; if the key expires between the read and the shrink, the
// racer is treated as not limited and a fresh window is armed. An active
// window within bounds is reported as-is, never restarted by the attempt.
func (l *Limiter) Check(ctx context.Context, guildID, userID uint64, limit time.Duration) (time.Duration, error) {
	if limit <= 0 {
		return 0, nil
	}

	k := key(guildID, userID)
	remaining, err := l.store.TTL(ctx, k)
	if err != nil {
		return 0, err
	}

	if remaining > limit {
		ok, err := l.store.ExpireIfExists(ctx, k, limit)
		if err != nil {
			return 0, err
		}
		if ok {
			return limit, nil
		}
		remaining = 0
	}

	if remaining > 0 {
		return remaining, nil
	}

	if err := l.store.Arm(ctx, k, limit); err != nil {
		return 0, err
	}
	return 0, nil
}
