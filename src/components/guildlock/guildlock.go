// Package guildlock serializes suggestion creation per guild. Discord can
// deliver interactions for the same guild concurrently, and id allocation
// (count, post, persist, bump) must run one at a time per guild or two
// suggestions would race for the same sequential id.
//
// The lock is process-local. If the bot is ever scaled horizontally, two
// processes can still race on id allocation; that is a known limitation of
// the single-process design, not something this package papers over.
package guildlock

import (
	"context"
	"sync"
)

type queue struct {
	sem     chan struct{}
	waiters int
}

// Locker hands out one critical section per guild at a time. Waiters for the
// same guild run in FIFO arrival order; different guilds never block each
// other. Queues are created lazily and dropped as soon as the last waiter
// leaves, so memory tracks currently active guilds only.
type Locker struct {
	mu     sync.Mutex
	queues map[uint64]*queue
}

func New() *Locker {
	return &Locker{queues: make(map[uint64]*queue)}
}

// Do runs fn while holding the guild's lock. The lock is released even if fn
// panics. Waiting is abandoned when ctx is done.
func (l *Locker) Do(ctx context.Context, guildID uint64, fn func() error) error {
	q := l.enter(guildID)

	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		l.leave(guildID, q)
		return ctx.Err()
	}

	defer func() {
		<-q.sem
		l.leave(guildID, q)
	}()
	return fn()
}

// Active reports the number of guilds with a held or contended lock.
func (l *Locker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}

func (l *Locker) enter(guildID uint64) *queue {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.queues[guildID]
	if !ok {
		q = &queue{sem: make(chan struct{}, 1)}
		l.queues[guildID] = q
	}
	q.waiters++
	return q
}

func (l *Locker) leave(guildID uint64, q *queue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q.waiters--
	if q.waiters == 0 {
		delete(l.queues, guildID)
	}
}
