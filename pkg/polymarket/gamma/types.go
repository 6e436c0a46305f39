// Package gamma provides a client for the Polymarket Gamma Markets API.
// Gamma is a read-only API for fetching market and event metadata.
package gamma

import (
	"time"

	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

// Event represents a Polymarket event (container for multiple markets).
type Event struct {
	ID          polymarket.FlexString `json:"id"`
	Ticker      string                `json:"ticker"`
	Slug        string                `json:"slug"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	StartDate   time.Time             `json:"startDate"`
	EndDate     time.Time             `json:"endDate"`
	Active      bool                  `json:"active"`
	Closed      bool                  `json:"closed"`
	Archived    bool                  `json:"archived"`
	Liquidity   polymarket.JSONFloat  `json:"liquidity"`
	Volume      polymarket.JSONFloat  `json:"volume"`
	Markets     []Market              `json:"markets,omitempty"`
	NegRisk     bool                  `json:"negRisk"`
}

// Market represents a single prediction market.
type Market struct {
	ID          polymarket.FlexString `json:"id"`
	Question    string                `json:"question"`
	Title       string                `json:"title"`
	ConditionID string                `json:"conditionId"`
	Slug        string                `json:"slug"`
	MarketSlug  string                `json:"market_slug"`
	Description string                `json:"description"`
	Active      bool                  `json:"active"`
	Closed      bool                  `json:"closed"`

	// Parallel arrays; Gamma ships them as JSON-encoded strings.
	ClobTokenIDs  polymarket.StringList `json:"clobTokenIds"`
	Outcomes      polymarket.StringList `json:"outcomes"`
	OutcomePrices polymarket.StringList `json:"outcomePrices"`

	Liquidity polymarket.JSONFloat `json:"liquidity"`
	Volume    polymarket.JSONFloat `json:"volume"`

	polymarket.SlugHints
}

// DisplayTitle returns question, falling back to title.
func (m *Market) DisplayTitle() string {
	return polymarket.FirstNonEmpty(m.Question, m.Title)
}

// DisplaySlug returns slug, falling back to market_slug.
func (m *Market) DisplaySlug() string {
	return polymarket.FirstNonEmpty(m.Slug, m.MarketSlug)
}

// EventsFilter contains filter parameters for listing events.
type EventsFilter struct {
	Slug   string
	Limit  int
	Offset int
}

// MarketsFilter contains filter parameters for listing markets.
type MarketsFilter struct {
	ClobTokenIDs string // Comma-separated
	ConditionID  string
	Slug         string
	Limit        int
	Offset       int
}
