package portfolio

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/pace"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/data"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/market"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
)

// DustThreshold is the smallest position size considered open.
const DustThreshold = 0.01

// PositionsClient lists raw positions for a wallet.
type PositionsClient interface {
	GetPositions(ctx context.Context, user string, sizeGT float64) ([]data.Position, error)
}

// MetadataResolver resolves market display metadata.
type MetadataResolver interface {
	Resolve(ctx context.Context, marketID, assetID string) (market.Metadata, bool)
}

// MidPricer returns a token's midpoint, or 0.
type MidPricer interface {
	Mid(ctx context.Context, assetID string) float64
}

// Fetcher builds positions from upstream on every call.
type Fetcher struct {
	positions PositionsClient
	meta      MetadataResolver
	prices    MidPricer

	timeout time.Duration
	pacer   *pace.Pacer
	logger  *zap.Logger
	metrics *metrics.TrackerMetrics
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchTimeout bounds the positions request.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRecordPause sets the pause between records.
func WithRecordPause(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.pacer = pace.New(d)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.TrackerMetrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a positions fetcher.
func NewFetcher(positions PositionsClient, meta MetadataResolver, prices MidPricer, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		positions: positions,
		meta:      meta,
		prices:    prices,
		timeout:   10 * time.Second,
		pacer:     pace.New(100 * time.Millisecond),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchOpenPositions returns the wallet's open positions in upstream order.
// An upstream failure is returned as an error; an empty slice means the
// wallet genuinely holds nothing.
func (f *Fetcher) FetchOpenPositions(ctx context.Context, address string) ([]Position, error) {
	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	start := time.Now()
	raw, err := f.positions.GetPositions(fctx, address, DustThreshold)
	cancel()
	f.metrics.RecordUpstream("positions", err == nil, time.Since(start).Seconds())
	if err != nil {
		if errs.KindOf(err) == "" {
			err = errs.New("portfolio.FetchOpenPositions", errs.KindUpstream, errs.WithCause(err))
		}
		return nil, err
	}

	out := make([]Position, 0, len(raw))
	for i := range raw {
		rec := &raw[i]
		if rec.Size.Float64() < DustThreshold {
			continue
		}
		if err := f.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := f.build(ctx, rec)
		if err != nil {
			f.logger.Warn("dropping position",
				zap.String("wallet", address),
				zap.String("kind", string(errs.KindOf(err))),
				zap.Error(err))
			continue
		}
		out = append(out, p)
	}

	if len(out) > 0 {
		f.logger.Debug("positions loaded",
			zap.String("wallet", address),
			zap.Int("positions", len(out)),
			zap.Int("markets", countMarkets(out)))
	}
	return out, nil
}

func (f *Fetcher) build(ctx context.Context, rec *data.Position) (Position, error) {
	key := Key{MarketID: rec.ConditionID(), Outcome: rec.Outcome(), AssetID: rec.AssetID()}
	if key.MarketID == "" {
		return Position{}, errs.New("portfolio.build", errs.KindDataQuality, errs.WithMessage("position without market id"))
	}
	if key.AssetID == "" {
		return Position{}, errs.New("portfolio.build", errs.KindDataQuality,
			errs.WithMessage("position without asset id in market "+key.MarketID))
	}

	title, eventSlug, marketSlug := f.describe(ctx, key, rec)

	entry := rec.AvgPrice.Float64()
	current := f.prices.Mid(ctx, key.AssetID)
	if current <= 0 {
		current = embeddedPrice(rec, key.Outcome)
	}
	if current <= 0 {
		current = entry
	}

	return NewPosition(key, title, rec.Size.Float64(), entry, current, eventSlug, marketSlug), nil
}

// describe picks title and slugs: resolver first, then fields embedded in
// the record, then a placeholder.
func (f *Fetcher) describe(ctx context.Context, key Key, rec *data.Position) (title, eventSlug, marketSlug string) {
	if m, ok := f.meta.Resolve(ctx, key.MarketID, key.AssetID); ok && m.Title != "" {
		return m.Title, m.EventSlug, m.MarketSlug
	}

	var em data.EmbeddedMarket
	if rec.Market != nil {
		em = *rec.Market
	}
	slug := polymarket.FirstNonEmpty(em.Slug, rec.Slug)
	eventSlug = rec.EventSlugRaw

	switch {
	case em.Question != "":
		return em.Question, eventSlug, slug
	case em.Title != "":
		return em.Title, eventSlug, slug
	case rec.Title != "":
		return rec.Title, eventSlug, slug
	case slug != "":
		return HumanizeSlug(slug), eventSlug, slug
	}
	f.logger.Warn("no metadata for position", zap.String("market", key.MarketID))
	return market.PlaceholderTitle(key.MarketID), eventSlug, ""
}

func embeddedPrice(rec *data.Position, outcome string) float64 {
	if rec.Market == nil {
		return 0
	}
	switch strings.ToLower(outcome) {
	case "yes":
		return rec.Market.OutcomePrices.Float(0)
	case "no":
		return rec.Market.OutcomePrices.Float(1)
	}
	return 0
}

// HumanizeSlug turns "will-x-happen" into "Will X Happen".
func HumanizeSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' })
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}

func countMarkets(ps []Position) int {
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		seen[p.MarketID] = struct{}{}
	}
	return len(seen)
}
