package cache

import (
	"fmt"
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

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if e, ok := c.Get("a"); !ok || e.Value != 1 {
		t.Errorf("a = %+v, %v", e, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheMaxAge(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Hour).WithClock(clock.Now)

	c.Set("old", "x")
	clock.Advance(30 * time.Minute)
	c.Set("new", "y")

	e, ok := c.Get("old")
	if !ok || e.Age(clock.Now()) != 30*time.Minute {
		t.Fatalf("old = %+v, %v", e, ok)
	}

	clock.Advance(45 * time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("old should be gone")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new should survive")
	}
}

func TestLRUCacheOverwriteRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](1, time.Minute).WithClock(clock.Now)

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	e, ok := c.Get("k")
	if !ok || e.Value != 2 {
		t.Errorf("Get() = %+v, %v", e, ok)
	}
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				c.Set(key, i)
				c.Get(key)
				if i%17 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Errorf("Size() = %d exceeds bound", c.Size())
	}
}

func TestManagerSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	a := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	b := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	a.Set("x", 1)
	b.Set("y", 2)
	b.Set("z", 3)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clock.Advance(2 * time.Second)
	if n := m.Sweep(); n != 3 {
		t.Errorf("Sweep() = %d, want 3", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
