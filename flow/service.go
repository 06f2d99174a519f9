package flow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"optionflow/config"
	"optionflow/internal/cache"
	"optionflow/internal/market"
	"optionflow/internal/throttle"
	"optionflow/logger"
	"optionflow/models"
)

// Source is the upstream options data provider.
type Source interface {
	OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error)
	OptionsChainAt(ctx context.Context, symbol string, expiration int64) (*models.OptionChain, error)
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Service runs the view pipeline: every request first consults the freshness
// cache and the fetch gate, and only when both agree does a fetch cycle hit
// the provider. A cycle that fails leaves the gate unmarked, so the next
// request retries immediately instead of waiting out a cooldown.
type Service struct {
	cfg       *config.Config
	universes *config.SymbolUniverses
	source    Source
	cache     *cache.Cache
	gate      *throttle.Gate
	clock     *market.Clock
	log       *logger.Entry
}

// NewService wires the view pipeline together.
func NewService(cfg *config.Config, universes *config.SymbolUniverses, source Source, c *cache.Cache, gate *throttle.Gate, clock *market.Clock) *Service {
	return &Service{
		cfg:       cfg,
		universes: universes,
		source:    source,
		cache:     c,
		gate:      gate,
		clock:     clock,
		log:       logger.GetLogger().WithComponent("flow"),
	}
}

// cycle captures the state every view operation starts from: the time and
// market status it will stamp on its payload, and whether the gate lets a
// fresh fetch run.
type cycle struct {
	id         string
	now        time.Time
	marketOpen bool
	cached     any
	hasCached  bool
	fetch      bool
}

func (s *Service) begin(operation, key string) cycle {
	now := s.clock.Now()
	open := s.clock.IsOpen(now)
	payload, ok := s.cache.Get(key)

	c := cycle{
		id:         uuid.NewString(),
		now:        now,
		marketOpen: open,
		cached:     payload,
		hasCached:  ok,
		fetch:      s.gate.ShouldFetch(operation, now, open, ok),
	}
	if c.fetch {
		logger.IncrementCacheMiss(operation)
	} else {
		logger.IncrementCacheHit(operation)
	}
	return c
}

// finish stores the fresh payload and marks the gate, completing a
// successful fetch cycle.
func (s *Service) finish(operation, key string, c cycle, payload any, started time.Time) {
	s.cache.Set(key, payload, c.marketOpen)
	logger.IncrementCacheStore(operation)
	s.gate.MarkFetched(operation, c.now)

	logger.LogPerformanceEntry(s.log, "flow", operation, time.Since(started), logger.Fields{
		"cycle":       c.id,
		"market_open": c.marketOpen,
	})
}

// fail logs a failed cycle. When a stale payload is still cached it is
// served in place of the error; the gate stays unmarked either way.
func (s *Service) fail(operation string, c cycle, err error) (any, bool) {
	s.log.WithError(err).WithFields(logger.Fields{
		"cycle":     c.id,
		"operation": operation,
		"stale":     c.hasCached,
	}).Error("fetch cycle failed")

	if c.hasCached {
		return c.cached, true
	}
	return nil, false
}
