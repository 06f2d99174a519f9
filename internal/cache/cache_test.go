package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time {
	return f.current
}

func (f *fakeClock) advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(10*time.Minute, 24*time.Hour, clock.now), clock
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache()

	c.Set("topMovers", "payload", true)
	got, ok := c.Get("topMovers")
	if !ok || got != "payload" {
		t.Fatalf("Get = (%v, %v), want (payload, true)", got, ok)
	}
	if !c.Has("topMovers") {
		t.Error("Has should report a live entry")
	}
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache()
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestOpenMarketTTLExpiry(t *testing.T) {
	c, clock := newTestCache()

	c.Set("summaryStats", 42, true)
	clock.advance(9 * time.Minute)
	if _, ok := c.Get("summaryStats"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	clock.advance(2 * time.Minute)
	if _, ok := c.Get("summaryStats"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestClosedMarketTTLOutlivesOpenTTL(t *testing.T) {
	c, clock := newTestCache()

	c.Set("summaryStats", 42, false)
	clock.advance(12 * time.Hour)
	if _, ok := c.Get("summaryStats"); !ok {
		t.Fatal("closed-market entry expired too early")
	}

	clock.advance(13 * time.Hour)
	if _, ok := c.Get("summaryStats"); ok {
		t.Fatal("closed-market entry survived past 24h")
	}
}

func TestTTLFixedAtWriteTime(t *testing.T) {
	c, clock := newTestCache()

	// Written with the open-market TTL; a later Set with closed state must
	// not stretch the original entry, only replace it.
	c.Set("chain_SPY", "v1", true)
	clock.advance(5 * time.Minute)
	c.Set("chain_SPY", "v2", false)
	clock.advance(11 * time.Minute)

	got, ok := c.Get("chain_SPY")
	if !ok || got != "v2" {
		t.Fatalf("expected replacement entry to live on closed TTL, got (%v, %v)", got, ok)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c, clock := newTestCache()

	c.Set("a", 1, true)
	c.Set("b", 2, false)
	clock.advance(time.Hour)

	c.sweep()
	if c.Len() != 1 {
		t.Fatalf("expected 1 surviving entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("closed-market entry should survive the sweep")
	}
}
