package throttle

import (
	"strings"
	"sync"
	"time"
)

// Gate tracks, per logical operation, when its last successful fetch cycle
// completed, and decides whether a new request warrants hitting the upstream
// provider again. The first call for any operation always proceeds (the zero
// time is long past every cooldown).
type Gate struct {
	mu        sync.Mutex
	lastFetch map[string]time.Time

	cooldowns map[string]time.Duration
	fallback  time.Duration
}

// NewGate builds a gate with per-operation cooldowns. Operations without an
// entry use the fallback cooldown.
func NewGate(cooldowns map[string]time.Duration, fallback time.Duration) *Gate {
	if cooldowns == nil {
		cooldowns = map[string]time.Duration{}
	}
	return &Gate{
		lastFetch: make(map[string]time.Time),
		cooldowns: cooldowns,
		fallback:  fallback,
	}
}

// ShouldFetch reports whether the operation should run a fresh fetch cycle.
// With no cached entry a fetch is always warranted. With one, the cache is
// served while the market is closed, and during the operation's cooldown
// window while it is open.
func (g *Gate) ShouldFetch(operation string, now time.Time, marketOpen, cached bool) bool {
	if !cached {
		return true
	}
	if !marketOpen {
		return false
	}
	return now.Sub(g.LastFetch(operation)) >= g.Cooldown(operation)
}

// MarkFetched records a completed fetch cycle. Callers invoke it only after
// the cycle succeeded, so a failed cycle does not consume the cooldown
// window and the next request retries immediately.
func (g *Gate) MarkFetched(operation string, now time.Time) {
	g.mu.Lock()
	g.lastFetch[operation] = now
	g.mu.Unlock()
}

// LastFetch returns when the operation last completed a fetch cycle, or the
// zero time if it never has.
func (g *Gate) LastFetch(operation string) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFetch[operation]
}

// Cooldown returns the configured cooldown for the operation. Keyed
// operations like "options_chain:SPY" track their last fetch individually
// but resolve the cooldown under the base name before the colon.
func (g *Gate) Cooldown(operation string) time.Duration {
	if d, ok := g.cooldowns[operation]; ok {
		return d
	}
	if base, _, found := strings.Cut(operation, ":"); found {
		if d, ok := g.cooldowns[base]; ok {
			return d
		}
	}
	return g.fallback
}
