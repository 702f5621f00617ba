package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	if _, ok := c.Get("key2"); ok {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)

	c.Set("default", "a")
	c.SetWithTTL("short", "b", 10*time.Second)

	clock.advance(10 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("short should expire at exactly its ttl")
	}
	if v, ok := c.Get("default"); !ok || v != "a" {
		t.Errorf("Get(default) = %q, %v", v, ok)
	}

	clock.advance(time.Minute)
	if _, ok := c.Get("default"); ok {
		t.Error("default should have expired")
	}
}

func TestLRUCacheOverwriteAndDelete(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}

	c.Set("b", 1)
	c.SetWithTTL("b", 1, 0)
	if _, ok := c.Get("b"); ok {
		t.Error("non-positive ttl should remove the key")
	}
}

func TestCleanExpired(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Hour).WithClock(clock.now)
	c.SetWithTTL("a", "1", time.Second)
	c.SetWithTTL("b", "2", time.Second)
	c.Set("c", "3")

	clock.advance(2 * time.Second)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManagerSweepAndStop(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Second).WithClock(clock.now)
	c.Set("a", "1")

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(context.Background(), time.Hour)

	clock.advance(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}

	m.Stop()
	m.Stop() // second call is a no-op
}
