package portfolio

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/cache"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
)

// Source produces fresh positions.
type Source interface {
	FetchOpenPositions(ctx context.Context, address string) ([]Position, error)
}

// Cached serves display reads from a short-lived cache.
type Cached struct {
	source  Source
	cache   cache.Cache[[]Position]
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.TrackerMetrics

	// mu orders cache writes against Invalidate.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewCached wraps source. A nil cache gets an in-memory one.
func NewCached(source Source, c cache.Cache[[]Position], ttl time.Duration, logger *zap.Logger, m *metrics.TrackerMetrics) *Cached {
	if c == nil {
		c = cache.NewTTL[[]Position]()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{source: source, cache: c, ttl: ttl, logger: logger, metrics: m, gens: make(map[string]uint64)}
}

// FetchPortfolio returns positions sorted by current value, highest first.
// Only non-empty results are cached, and a result fetched across an
// Invalidate is returned but not cached.
func (c *Cached) FetchPortfolio(ctx context.Context, address string) ([]Position, error) {
	c.mu.Lock()
	gen := c.gens[address]
	c.mu.Unlock()

	if ps, ok, err := c.cache.Get(ctx, address); err == nil && ok {
		c.metrics.RecordCache("portfolio", true)
		return ps, nil
	}
	c.metrics.RecordCache("portfolio", false)

	ps, err := c.source.FetchOpenPositions(ctx, address)
	if err != nil {
		return nil, err
	}
	sorted := make([]Position, len(ps))
	copy(sorted, ps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentValue > sorted[j].CurrentValue
	})

	if len(sorted) > 0 {
		c.mu.Lock()
		if c.gens[address] == gen {
			if err := c.cache.Set(ctx, address, sorted, c.ttl); err != nil {
				c.logger.Debug("portfolio cache write failed", zap.Error(err))
			}
		}
		c.mu.Unlock()
	}
	return sorted, nil
}

// Invalidate drops the cached portfolio for address.
func (c *Cached) Invalidate(ctx context.Context, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[address]++
	_ = c.cache.Delete(ctx, address)
}
