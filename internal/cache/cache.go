package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores computed view payloads with a time-to-live fixed at write
// time from the market state observed then. Entries written while the market
// is open age out quickly; entries written after the close live until the
// next session since the data cannot change. Expiry is lazy on read with a
// background sweep reclaiming memory for keys nobody asks for again.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	openTTL   time.Duration
	closedTTL time.Duration
	now       func() time.Time
}

type entry struct {
	payload   any
	expiresAt time.Time
}

// New builds a cache with the given TTLs for entries written during open and
// closed market states.
func New(openTTL, closedTTL time.Duration) *Cache {
	return NewWithClock(openTTL, closedTTL, time.Now)
}

// NewWithClock builds a cache with an injected time source, for tests.
func NewWithClock(openTTL, closedTTL time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries:   make(map[string]entry),
		openTTL:   openTTL,
		closedTTL: closedTTL,
		now:       now,
	}
}

// Get returns the payload stored under key, or false when the key is absent
// or past its TTL. An expired entry is removed on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry with a fresh one.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key. The TTL is chosen once, from the market
// state passed in, and never re-evaluated while the entry lives.
func (c *Cache) Set(key string, payload any, marketOpen bool) {
	ttl := c.closedTTL
	if marketOpen {
		ttl = c.openTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Has reports whether a live entry exists under key.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of stored entries, expired ones included until the
// next sweep touches them.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper launches a background loop that drops expired entries every
// interval until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
