// Package portfolio builds a wallet's open positions from the Data API,
// enriched with market metadata and current prices.
package portfolio

import (
	"github.com/shopspring/decimal"
)

// Key identifies a position across polls.
type Key struct {
	MarketID string `json:"marketId"`
	Outcome  string `json:"outcome"`
	AssetID  string `json:"assetId"`
}

func (k Key) String() string {
	return k.MarketID + "-" + k.Outcome + "-" + k.AssetID
}

// Position is one open holding. Values are immutable once built.
type Position struct {
	Key

	Title        string  `json:"title"`
	Size         float64 `json:"size"`
	EntryPrice   float64 `json:"entryPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	EventSlug    string  `json:"eventSlug"`
	MarketSlug   string  `json:"marketSlug"`

	Invested     float64 `json:"invested"`
	CurrentValue float64 `json:"currentValue"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnlPercent"`
}

// NewPosition builds a position and computes its derived fields.
func NewPosition(key Key, title string, size, entry, current float64, eventSlug, marketSlug string) Position {
	p := Position{
		Key:          key,
		Title:        title,
		Size:         size,
		EntryPrice:   entry,
		CurrentPrice: current,
		EventSlug:    eventSlug,
		MarketSlug:   marketSlug,
	}

	sz := decimal.NewFromFloat(size)
	invested := sz.Mul(decimal.NewFromFloat(entry))
	value := sz.Mul(decimal.NewFromFloat(current))
	pnl := value.Sub(invested)

	p.Invested = invested.InexactFloat64()
	p.CurrentValue = value.InexactFloat64()
	p.PnL = pnl.InexactFloat64()
	if !invested.IsZero() {
		p.PnLPercent = pnl.Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return p
}

// Summary aggregates a portfolio for display.
type Summary struct {
	Positions     int     `json:"positions"`
	Markets       int     `json:"markets"`
	TotalValue    float64 `json:"totalValue"`
	TotalInvested float64 `json:"totalInvested"`
	TotalPnL      float64 `json:"totalPnl"`
	PnLPercent    float64 `json:"pnlPercent"`
}

// Summarize totals positions.
func Summarize(positions []Position) Summary {
	value, invested := decimal.Zero, decimal.Zero
	markets := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		value = value.Add(decimal.NewFromFloat(p.CurrentValue))
		invested = invested.Add(decimal.NewFromFloat(p.Invested))
		markets[p.MarketID] = struct{}{}
	}
	pnl := value.Sub(invested)

	s := Summary{
		Positions:     len(positions),
		Markets:       len(markets),
		TotalValue:    value.Round(2).InexactFloat64(),
		TotalInvested: invested.Round(2).InexactFloat64(),
		TotalPnL:      pnl.Round(2).InexactFloat64(),
	}
	if !invested.IsZero() {
		s.PnLPercent = pnl.Div(invested).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return s
}
