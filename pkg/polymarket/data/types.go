// Package data provides a client for the Polymarket Data API, which serves
// per-wallet positions and a condition-id keyed market lookup.
package data

import (
	"bytes"

	json "github.com/goccy/go-json"

	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

// Position is one raw record from /positions. Field names vary between API
// revisions; use the accessor methods rather than the raw fields.
type Position struct {
	ProxyWallet     string               `json:"proxyWallet"`
	ConditionIDRaw  string               `json:"conditionId"`
	ConditionIDAlt  string               `json:"condition_id"`
	Asset           string               `json:"asset"`
	AssetIDAlt      string               `json:"assetId"`
	OutcomeRaw      string               `json:"outcome"`
	OutcomeIndex    int                  `json:"outcomeIndex"`
	Size            polymarket.JSONFloat `json:"size"`
	AvgPrice        polymarket.JSONFloat `json:"avgPrice"`
	CurPrice        polymarket.JSONFloat `json:"curPrice"`
	InitialValue    polymarket.JSONFloat `json:"initialValue"`
	CurrentValueRaw polymarket.JSONFloat `json:"currentValue"`
	Title           string               `json:"title"`
	Slug            string               `json:"slug"`
	EventSlugRaw    string               `json:"eventSlug"`
	Redeemable      bool                 `json:"redeemable"`

	Market *EmbeddedMarket `json:"market"`
}

// EmbeddedMarket is the optional market object nested inside a position.
type EmbeddedMarket struct {
	Question      string                `json:"question"`
	Title         string                `json:"title"`
	Slug          string                `json:"slug"`
	OutcomePrices polymarket.StringList `json:"outcomePrices"`
}

// UnmarshalJSON tolerates "market" carrying a bare condition id string.
func (m *EmbeddedMarket) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*m = EmbeddedMarket{}
		return nil
	}
	type plain EmbeddedMarket
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*m = EmbeddedMarket(p)
	return nil
}

// ConditionID returns the market's condition id under either key.
func (p *Position) ConditionID() string {
	return polymarket.FirstNonEmpty(p.ConditionIDRaw, p.ConditionIDAlt)
}

// AssetID returns the outcome token id under either key.
func (p *Position) AssetID() string {
	return polymarket.FirstNonEmpty(p.Asset, p.AssetIDAlt)
}

// Outcome returns the outcome name, or "Unknown".
func (p *Position) Outcome() string {
	return polymarket.FirstNonEmpty(p.OutcomeRaw, "Unknown")
}

// Market is the record served by /markets/{conditionId}.
type Market struct {
	ConditionID string `json:"conditionId"`
	Question    string `json:"question"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	MarketSlug  string `json:"market_slug"`

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
