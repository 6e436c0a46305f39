package activity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/pace"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/market"
)

// MarketLookup resolves market metadata and outcome token ids.
type MarketLookup interface {
	Resolve(ctx context.Context, marketID, assetID string) (market.Metadata, bool)
	OutcomeTokens(ctx context.Context, marketID string) (market.OutcomeTokens, bool)
}

// Enricher fills in metadata for events whose market was not resolved when
// the positions were built.
type Enricher struct {
	lookup MarketLookup
	pacer  *pace.Pacer
	logger *zap.Logger
}

// NewEnricher creates an enricher pausing gap between distinct markets.
func NewEnricher(lookup MarketLookup, gap time.Duration, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{lookup: lookup, pacer: pace.New(gap), logger: logger}
}

func needsEnrichment(e *ChangeEvent) bool {
	if market.IsPlaceholderTitle(e.MarketTitle, e.MarketID) {
		return true
	}
	return e.EventSlug == "" && e.MarketSlug == ""
}

// Enrich updates events in place. Each distinct market needing metadata is
// looked up once and the result is shared by all of its events.
func (en *Enricher) Enrich(ctx context.Context, events []ChangeEvent) {
	groups := make(map[string][]int)
	var order []string
	for i := range events {
		e := &events[i]
		if e.MarketID == "" || !needsEnrichment(e) {
			continue
		}
		if _, ok := groups[e.MarketID]; !ok {
			order = append(order, e.MarketID)
		}
		groups[e.MarketID] = append(groups[e.MarketID], i)
	}

	for _, marketID := range order {
		if err := en.pacer.Wait(ctx); err != nil {
			return
		}
		idx := groups[marketID]

		meta, ok := en.lookup.Resolve(ctx, marketID, events[idx[0]].AssetID)
		if ok {
			for _, i := range idx {
				e := &events[i]
				if meta.Title != "" {
					e.MarketTitle = meta.Title
				}
				if meta.EventSlug != "" {
					e.EventSlug = meta.EventSlug
				}
				if meta.MarketSlug != "" {
					e.MarketSlug = meta.MarketSlug
				}
			}
		}

		tokens, ok := en.lookup.OutcomeTokens(ctx, marketID)
		if ok {
			for _, i := range idx {
				if id, found := tokens.TokenFor(events[i].Outcome); found {
					events[i].OutcomeTokenID = id
				}
			}
		}

		en.logger.Debug("market enriched",
			zap.String("market", marketID),
			zap.Int("events", len(idx)),
			zap.Bool("metadata", meta.Title != ""))
	}
}
