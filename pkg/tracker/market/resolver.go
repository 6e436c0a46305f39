// Package market resolves condition ids into display metadata and outcome
// token ids through an ordered chain of upstream lookups with long-lived
// caching.
package market

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/cache"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/clob"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/data"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/gamma"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
)

// Metadata is the display information for one market. Any field may be empty.
type Metadata struct {
	Title      string `json:"title"`
	EventSlug  string `json:"eventSlug"`
	MarketSlug string `json:"marketSlug"`
}

// Complete reports whether the lookup chain can stop.
func (m Metadata) Complete() bool {
	return m.Title != "" && (m.EventSlug != "" || m.MarketSlug != "")
}

// fill copies each non-empty field of o into m where m is still empty.
func (m *Metadata) fill(o Metadata) {
	if m.Title == "" {
		m.Title = o.Title
	}
	if m.EventSlug == "" {
		m.EventSlug = o.EventSlug
	}
	if m.MarketSlug == "" {
		m.MarketSlug = o.MarketSlug
	}
}

// DataMarkets looks markets up on the Data API.
type DataMarkets interface {
	GetMarket(ctx context.Context, conditionID string) (*data.Market, error)
}

// CLOBMarkets looks markets up on the CLOB.
type CLOBMarkets interface {
	GetMarket(ctx context.Context, conditionID string) (*clob.MarketInfo, error)
}

// GammaMarkets looks markets and events up on Gamma.
type GammaMarkets interface {
	GetMarketByConditionID(ctx context.Context, conditionID string) (*gamma.Market, error)
	GetMarketByTokenID(ctx context.Context, tokenID string) (*gamma.Market, error)
	GetEvent(ctx context.Context, id string) (*gamma.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*gamma.Event, error)
}

// Timeouts bounds each upstream call made by the resolver.
type Timeouts struct {
	Data    time.Duration
	CLOB    time.Duration
	Gamma   time.Duration
	Event   time.Duration
	Token   time.Duration
	Outcome time.Duration
}

// DefaultTimeouts returns the standard per-source timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Data:    5 * time.Second,
		CLOB:    3 * time.Second,
		Gamma:   5 * time.Second,
		Event:   3 * time.Second,
		Token:   3 * time.Second,
		Outcome: 4 * time.Second,
	}
}

// lookup is one step of the resolution chain.
type lookup struct {
	name string
	run  func(ctx context.Context, marketID, assetID string, acc Metadata) (Metadata, error)
	// needsAsset skips the step when no asset id is known.
	needsAsset bool
}

// Resolver resolves market metadata and outcome tokens. Safe for concurrent use.
type Resolver struct {
	data  DataMarkets
	clob  CLOBMarkets
	gamma GammaMarkets

	meta     cache.Cache[Metadata]
	outcomes cache.Cache[OutcomeTokens]
	ttl      time.Duration

	timeouts Timeouts
	chain    []lookup
	logger   *zap.Logger
	metrics  *metrics.TrackerMetrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCaches replaces the in-memory caches.
func WithCaches(meta cache.Cache[Metadata], outcomes cache.Cache[OutcomeTokens]) Option {
	return func(r *Resolver) {
		if meta != nil {
			r.meta = meta
		}
		if outcomes != nil {
			r.outcomes = outcomes
		}
	}
}

// WithTTL sets the cache TTL for both metadata and outcome tokens.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

// WithTimeouts overrides the per-source timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(r *Resolver) {
		r.timeouts = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver over the three market sources.
func NewResolver(d DataMarkets, c CLOBMarkets, g GammaMarkets, opts ...Option) *Resolver {
	r := &Resolver{
		data:     d,
		clob:     c,
		gamma:    g,
		meta:     cache.NewTTL[Metadata](),
		outcomes: cache.NewTTL[OutcomeTokens](),
		ttl:      24 * time.Hour,
		timeouts: DefaultTimeouts(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.chain = []lookup{
		{name: "data-api", run: r.fromData},
		{name: "clob", run: r.fromCLOB},
		{name: "gamma", run: r.fromGamma},
		{name: "gamma-token", run: r.fromGammaToken, needsAsset: true},
	}
	return r
}

// Resolve returns metadata for marketID. The result is cached when a title
// was found, even if slugs are missing; a lookup that finds no title is not
// cached so the next poll retries it.
func (r *Resolver) Resolve(ctx context.Context, marketID, assetID string) (Metadata, bool) {
	if marketID == "" {
		return Metadata{}, false
	}
	if m, ok, err := r.meta.Get(ctx, marketID); err == nil && ok {
		r.metrics.RecordCache("market_metadata", true)
		return m, true
	} else if err != nil {
		r.logger.Debug("metadata cache read failed", zap.Error(err))
	}
	r.metrics.RecordCache("market_metadata", false)

	var acc Metadata
	for _, step := range r.chain {
		if acc.Complete() {
			break
		}
		if step.needsAsset && assetID == "" {
			continue
		}
		start := time.Now()
		found, err := step.run(ctx, marketID, assetID, acc)
		r.metrics.RecordUpstream(step.name, err == nil, time.Since(start).Seconds())
		if err != nil {
			r.logger.Debug("metadata source failed",
				zap.String("source", step.name),
				zap.String("market", marketID),
				zap.Error(err))
			continue
		}
		acc.fill(found)
	}

	if acc.Title == "" {
		r.logger.Warn("no metadata for market", zap.String("market", marketID))
		return Metadata{}, false
	}
	if acc.EventSlug == "" && acc.MarketSlug != "" {
		acc.EventSlug = DeriveEventSlug(acc.MarketSlug)
	}

	if err := r.meta.Set(ctx, marketID, acc, r.ttl); err != nil {
		r.logger.Debug("metadata cache write failed", zap.Error(err))
	}
	return acc, true
}

// Forget drops cached metadata and outcome tokens for marketID.
func (r *Resolver) Forget(ctx context.Context, marketID string) {
	_ = r.meta.Delete(ctx, marketID)
	_ = r.outcomes.Delete(ctx, marketID)
}

func (r *Resolver) fromData(ctx context.Context, marketID, _ string, _ Metadata) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Data)
	defer cancel()

	m, err := r.data.GetMarket(ctx, marketID)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Title: m.DisplayTitle(), EventSlug: m.EventSlug(), MarketSlug: m.DisplaySlug()}, nil
}

func (r *Resolver) fromCLOB(ctx context.Context, marketID, _ string, _ Metadata) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.CLOB)
	defer cancel()

	m, err := r.clob.GetMarket(ctx, marketID)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Title: m.DisplayTitle(), EventSlug: m.EventSlug(), MarketSlug: m.DisplaySlug()}, nil
}

func (r *Resolver) fromGamma(ctx context.Context, marketID, _ string, acc Metadata) (Metadata, error) {
	mctx, cancel := context.WithTimeout(ctx, r.timeouts.Gamma)
	m, err := r.gamma.GetMarketByConditionID(mctx, marketID)
	cancel()
	if err != nil {
		return Metadata{}, err
	}

	out := Metadata{Title: m.DisplayTitle(), EventSlug: m.EventSlug(), MarketSlug: m.DisplaySlug()}
	if out.EventSlug != "" || acc.EventSlug != "" {
		return out, nil
	}

	if id := m.EventID(); id != "" {
		ectx, cancel := context.WithTimeout(ctx, r.timeouts.Event)
		ev, err := r.gamma.GetEvent(ectx, id)
		cancel()
		if err == nil {
			out.EventSlug = ev.Slug
		} else {
			r.logger.Debug("event lookup by id failed", zap.String("event", id), zap.Error(err))
		}
	}
	if out.EventSlug == "" && out.MarketSlug != "" {
		ectx, cancel := context.WithTimeout(ctx, r.timeouts.Event)
		ev, err := r.gamma.GetEventBySlug(ectx, out.MarketSlug)
		cancel()
		if err == nil {
			out.EventSlug = ev.Slug
		} else {
			r.logger.Debug("event lookup by slug failed", zap.String("slug", out.MarketSlug), zap.Error(err))
		}
	}
	return out, nil
}

func (r *Resolver) fromGammaToken(ctx context.Context, _, assetID string, _ Metadata) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Token)
	defer cancel()

	m, err := r.gamma.GetMarketByTokenID(ctx, assetID)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Title: m.DisplayTitle(), EventSlug: m.EventSlug(), MarketSlug: m.DisplaySlug()}, nil
}
