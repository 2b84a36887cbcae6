package tempcache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := New[string, int](30*time.Second, time.Minute).WithClock(clock.Now)

	cache.Set("a", 1)
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	clock.Advance(29 * time.Second)
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("entry expired before maxAge")
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.Get("a"); ok {
		t.Fatal("entry survived past maxAge")
	}
	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after expired read, want 0", cache.Len())
	}
}

func TestEnsure(t *testing.T) {
	cache := New[string, int](time.Minute, time.Minute)

	calls := 0
	fill := func(string) (int, error) {
		calls++
		return 7, nil
	}

	for i := 0; i < 3; i++ {
		v, err := cache.Ensure("k", fill)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if v != 7 {
			t.Fatalf("Ensure = %d, want 7", v)
		}
	}
	if calls != 1 {
		t.Fatalf("fill called %d times, want 1", calls)
	}
}

func TestEnsureErrorNotCached(t *testing.T) {
	cache := New[string, int](time.Minute, time.Minute)
	boom := errors.New("boom")

	if _, err := cache.Ensure("k", func(string) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("Ensure error = %v, want boom", err)
	}
	if cache.Len() != 0 {
		t.Fatal("failed fill left an entry behind")
	}
}

func TestSweeperLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := New[string, int](10*time.Millisecond, 5*time.Millisecond).WithClock(clock.Now)

	if cache.Sweeping() {
		t.Fatal("sweeper running on empty cache")
	}

	cache.Set("a", 1)
	if !cache.Sweeping() {
		t.Fatal("sweeper not started by Set")
	}

	clock.Advance(time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for cache.Sweeping() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if cache.Sweeping() {
		t.Fatal("sweeper still running after all entries expired")
	}
	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after sweep, want 0", cache.Len())
	}
}

func TestDeleteStopsSweeperWhenEmpty(t *testing.T) {
	cache := New[string, int](time.Minute, time.Minute)
	cache.Set("a", 1)
	cache.Delete("a")
	if cache.Sweeping() {
		t.Fatal("sweeper running after last entry deleted")
	}
}
