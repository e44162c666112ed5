package cache

import (
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *time.Time) {
	t.Helper()
	now := time.Now()
	c := New("test_"+t.Name(), 10, ttl)
	c.now = func() time.Time { return now }
	t.Cleanup(c.Stop)
	return c, &now
}

func TestGetBeforeAndAfterTTL(t *testing.T) {
	c, now := newTestCache(t, 5*time.Minute)

	c.Put("creds_123", []byte("payload"))
	if v, ok := c.Get("creds_123"); !ok || string(v.([]byte)) != "payload" {
		t.Fatalf("fresh entry: got %v, %v", v, ok)
	}

	*now = now.Add(5*time.Minute + time.Second)
	if _, ok := c.Get("creds_123"); ok {
		t.Fatal("expired entry still served")
	}
	// Expired entries are evicted on access, not just hidden.
	if c.Size() != 0 {
		t.Fatalf("size after expiry: %d, want 0", c.Size())
	}
}

func TestPutRefreshesAge(t *testing.T) {
	c, now := newTestCache(t, time.Minute)

	c.Put("k", 1)
	*now = now.Add(50 * time.Second)
	c.Put("k", 2)
	*now = now.Add(50 * time.Second)

	v, ok := c.Get("k")
	if !ok || v.(int) != 2 {
		t.Fatalf("got %v, %v after refresh", v, ok)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	now := time.Now()
	c := New("test_capacity", 2, time.Hour)
	c.now = func() time.Time { return now }
	defer c.Stop()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("lru entry survived over capacity")
	}
	if c.Size() != 2 {
		t.Fatalf("size %d, want 2", c.Size())
	}
}

func TestInvalidateExpiredSweep(t *testing.T) {
	c, now := newTestCache(t, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	c.InvalidateExpired(now.Add(2 * time.Minute))

	if c.Size() != 0 {
		t.Fatalf("size after sweep: %d, want 0", c.Size())
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Put("a", 1)
	c.Invalidate("a")
	c.Invalidate("a") // absent key is fine
	if _, ok := c.Get("a"); ok {
		t.Fatal("invalidated entry still served")
	}
}
