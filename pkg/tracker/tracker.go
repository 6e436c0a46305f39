// Package tracker wires identity resolution, portfolio fetching and change
// detection into a single engine used by the scheduler and the admin API.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/cache"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/identity"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/market"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/quote"
)

// Config holds engine timings. Zero cache lifetimes and timeouts are
// replaced by defaults; zero pauses disable pacing.
type Config struct {
	// Cache lifetimes
	MetadataTTL  time.Duration
	PortfolioTTL time.Duration
	UsernameTTL  time.Duration

	// Pacing; zero means no pause
	RecordPause time.Duration
	EnrichPause time.Duration

	// Per-call timeouts
	PositionsTimeout time.Duration
	QuoteTimeout     time.Duration
	ProfileTimeout   time.Duration
	ReverseTimeout   time.Duration
	Market           market.Timeouts
}

// DefaultConfig returns the standard timings.
func DefaultConfig() *Config {
	return &Config{
		MetadataTTL:      24 * time.Hour,
		PortfolioTTL:     30 * time.Second,
		UsernameTTL:      time.Hour,
		RecordPause:      100 * time.Millisecond,
		EnrichPause:      100 * time.Millisecond,
		PositionsTimeout: 10 * time.Second,
		QuoteTimeout:     2 * time.Second,
		ProfileTimeout:   8 * time.Second,
		ReverseTimeout:   5 * time.Second,
		Market:           market.DefaultTimeouts(),
	}
}

// CLOB is the subset of the CLOB client used for prices and market lookups.
type CLOB interface {
	market.CLOBMarkets
	quote.PriceClient
}

// Deps are the upstream clients the engine reads from.
type Deps struct {
	Positions   portfolio.PositionsClient
	DataMarkets market.DataMarkets
	CLOB        CLOB
	Gamma       market.GammaMarkets
	Pages       identity.PageFetcher
}

// Caches optionally replaces the in-memory caches, e.g. with Redis.
type Caches struct {
	Metadata  cache.Cache[market.Metadata]
	Outcomes  cache.Cache[market.OutcomeTokens]
	Portfolio cache.Cache[[]portfolio.Position]
	Usernames cache.Cache[string]
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	caches  Caches
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.TrackerMetrics
}

// WithCaches sets shared caches. Nil fields keep the in-memory default.
func WithCaches(c Caches) Option {
	return func(o *options) {
		o.caches = c
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Tracker is the change-detection engine. One instance owns all snapshot
// and cache state; it is safe for concurrent use.
type Tracker struct {
	config *Config

	identity  *identity.Resolver
	markets   *market.Resolver
	quotes    *quote.Service
	fetcher   *portfolio.Fetcher
	portfolio *portfolio.Cached
	diff      *activity.DiffEngine
	enricher  *activity.Enricher
	positions portfolio.PositionsClient

	logger  *zap.Logger
	metrics *metrics.TrackerMetrics
}

// New builds a tracker over deps.
func New(config *Config, deps Deps, opts ...Option) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	fillDefaults(config)

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	markets := market.NewResolver(deps.DataMarkets, deps.CLOB, deps.Gamma,
		market.WithCaches(o.caches.Metadata, o.caches.Outcomes),
		market.WithTTL(config.MetadataTTL),
		market.WithTimeouts(config.Market),
		market.WithLogger(logger.Named("market")),
		market.WithMetrics(o.metrics),
	)
	quotes := quote.NewService(deps.CLOB, config.QuoteTimeout, logger.Named("quote"))
	fetcher := portfolio.NewFetcher(deps.Positions, markets, quotes,
		portfolio.WithFetchTimeout(config.PositionsTimeout),
		portfolio.WithRecordPause(config.RecordPause),
		portfolio.WithLogger(logger.Named("portfolio")),
		portfolio.WithMetrics(o.metrics),
	)

	return &Tracker{
		config: config,
		identity: identity.NewResolver(deps.Pages,
			identity.WithLogger(logger.Named("identity")),
			identity.WithUsernameCache(o.caches.Usernames, config.UsernameTTL),
			identity.WithTimeouts(config.ProfileTimeout, config.ReverseTimeout),
		),
		markets:   markets,
		quotes:    quotes,
		fetcher:   fetcher,
		portfolio: portfolio.NewCached(fetcher, o.caches.Portfolio, config.PortfolioTTL, logger.Named("portfolio"), o.metrics),
		diff: activity.NewDiffEngine(fetcher, quotes,
			activity.WithClock(o.clock),
			activity.WithDiffLogger(logger.Named("diff")),
			activity.WithDiffMetrics(o.metrics),
		),
		enricher:  activity.NewEnricher(markets, config.EnrichPause, logger.Named("enrich")),
		positions: deps.Positions,
		logger:    logger,
		metrics:   o.metrics,
	}
}

func fillDefaults(c *Config) {
	d := DefaultConfig()
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = d.MetadataTTL
	}
	if c.PortfolioTTL <= 0 {
		c.PortfolioTTL = d.PortfolioTTL
	}
	if c.UsernameTTL <= 0 {
		c.UsernameTTL = d.UsernameTTL
	}
	if c.PositionsTimeout <= 0 {
		c.PositionsTimeout = d.PositionsTimeout
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = d.QuoteTimeout
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = d.ProfileTimeout
	}
	if c.ReverseTimeout <= 0 {
		c.ReverseTimeout = d.ReverseTimeout
	}
	if c.Market == (market.Timeouts{}) {
		c.Market = d.Market
	}
}

// ResolveIdentity maps an address, handle or profile URL to a lowercase
// wallet address.
func (t *Tracker) ResolveIdentity(ctx context.Context, input string) (string, bool) {
	return t.identity.Resolve(ctx, input)
}

// Username returns the profile handle for address, if one can be found.
func (t *Tracker) Username(ctx context.Context, address string) (string, bool) {
	return t.identity.Username(ctx, address)
}

// GetPortfolio returns the wallet's positions for display, served from a
// short-lived cache.
func (t *Tracker) GetPortfolio(ctx context.Context, address string) ([]portfolio.Position, error) {
	return t.portfolio.FetchPortfolio(ctx, identity.Normalize(address))
}

// PollOnce diffs the wallet against its last snapshot and enriches the
// resulting events. It always reads fresh positions.
func (t *Tracker) PollOnce(ctx context.Context, address string) ([]activity.ChangeEvent, error) {
	events, err := t.Detect(ctx, address)
	if err != nil {
		return nil, err
	}
	t.Enrich(ctx, events)
	return events, nil
}

// Detect is the diff half of PollOnce.
func (t *Tracker) Detect(ctx context.Context, address string) ([]activity.ChangeEvent, error) {
	return t.diff.Diff(ctx, identity.Normalize(address))
}

// Enrich fills placeholder titles, slugs and outcome token ids in place.
func (t *Tracker) Enrich(ctx context.Context, events []activity.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	t.enricher.Enrich(ctx, events)
}

// Invalidate drops all per-wallet state: snapshot, cached portfolio and
// username. The next poll stores a fresh baseline.
func (t *Tracker) Invalidate(ctx context.Context, address string) {
	address = identity.Normalize(address)
	t.diff.Forget(address)
	t.portfolio.Invalidate(ctx, address)
	t.identity.Forget(ctx, address)
	t.logger.Info("wallet state cleared", zap.String("wallet", address))
}

// HasBaseline reports whether the wallet has been polled successfully.
func (t *Tracker) HasBaseline(address string) bool {
	_, ok := t.diff.Snapshot(identity.Normalize(address))
	return ok
}
