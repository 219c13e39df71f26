// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestLRU(capacity int, ttl time.Duration) (*LRU[[]string], *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewLRU[[]string](capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRU_AddGet(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)
	c.Add("conv-1", []string{"alice", "bob"})

	got, ok := c.Get("conv-1")
	if !ok || len(got) != 2 || got[0] != "alice" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("found a key that was never added")
	}

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = %d/%d/%d, want 1/1/1", hits, misses, size)
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)
	c.Add("a", nil)
	c.Add("b", nil)
	c.Add("c", nil)

	// a becomes most recently used, so b is next out.
	c.Get("a")
	c.Add("d", nil)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be present", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	c, clock := newTestLRU(10, time.Second)
	c.Add("a", []string{"x"})

	clock.Advance(999 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired early")
	}

	clock.Advance(2 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Error("expired entry not removed on read")
	}
}

func TestLRU_AddRefreshesTTL(t *testing.T) {
	c, clock := newTestLRU(10, time.Second)
	c.Add("a", []string{"old"})
	clock.Advance(800 * time.Millisecond)
	c.Add("a", []string{"new"})
	clock.Advance(800 * time.Millisecond)

	got, ok := c.Get("a")
	if !ok || got[0] != "new" {
		t.Errorf("Get = %v, %v; want refreshed value", got, ok)
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	c, clock := newTestLRU(10, time.Second)
	c.Add("a", nil)
	c.Add("b", nil)
	clock.Advance(500 * time.Millisecond)
	c.Add("c", nil)
	clock.Advance(600 * time.Millisecond)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("unexpired entry removed")
	}
}

func TestLRU_Remove(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Add("a", nil)
	if !c.Remove("a") {
		t.Error("Remove of present key returned false")
	}
	if c.Remove("a") {
		t.Error("Remove of absent key returned true")
	}
}

func TestLRU_Defaults(t *testing.T) {
	c := NewLRU[int](0, 0)
	if c.capacity != defaultCapacity || c.ttl != defaultTTL {
		t.Errorf("defaults = %d/%v", c.capacity, c.ttl)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](100, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*500+i)%150)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 100 {
		t.Errorf("Len = %d, exceeds capacity", c.Len())
	}
}
