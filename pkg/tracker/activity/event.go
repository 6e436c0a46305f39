// Package activity turns successive portfolio snapshots into change events,
// enriches them with market metadata and suppresses duplicate deliveries.
package activity

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
)

// Kind is the type of position transition.
type Kind string

const (
	KindOpened    Kind = "opened"
	KindIncreased Kind = "increased"
	KindDecreased Kind = "decreased"
	KindClosed    Kind = "closed"
)

// Direction is the trade side implied by a transition.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Direction maps Opened/Increased to Buy and Decreased/Closed to Sell.
func (k Kind) Direction() Direction {
	switch k {
	case KindOpened, KindIncreased:
		return Buy
	default:
		return Sell
	}
}

// SizeThreshold is the minimum absolute size change reported as activity.
const SizeThreshold = 0.5

// eventNamespace scopes change event ids.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("polymarket-tracker/change-event"))

// ChangeEvent is one detected transition of a wallet's position.
type ChangeEvent struct {
	ID             string    `json:"id"`
	Wallet         string    `json:"wallet"`
	Kind           Kind      `json:"kind"`
	Direction      Direction `json:"direction"`
	MarketTitle    string    `json:"marketTitle"`
	Outcome        string    `json:"outcome"`
	Price          float64   `json:"price"`
	Quantity       float64   `json:"quantity"`
	EventSlug      string    `json:"eventSlug,omitempty"`
	MarketSlug     string    `json:"marketSlug,omitempty"`
	MarketID       string    `json:"marketId"`
	AssetID        string    `json:"assetId"`
	OutcomeTokenID string    `json:"outcomeTokenId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Key returns the position key the event refers to.
func (e ChangeEvent) Key() portfolio.Key {
	return portfolio.Key{MarketID: e.MarketID, Outcome: e.Outcome, AssetID: e.AssetID}
}

// EventID derives a stable id from wallet, position key, kind and poll time.
func EventID(wallet string, key portfolio.Key, kind Kind, at time.Time) string {
	name := wallet + "|" + key.String() + "|" + string(kind) + "|" + strconv.FormatInt(at.UnixMilli(), 10)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

func newEvent(wallet string, p portfolio.Position, kind Kind, price, qty float64, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:          EventID(wallet, p.Key, kind, at),
		Wallet:      wallet,
		Kind:        kind,
		Direction:   kind.Direction(),
		MarketTitle: p.Title,
		Outcome:     p.Outcome,
		Price:       price,
		Quantity:    qty,
		EventSlug:   p.EventSlug,
		MarketSlug:  p.MarketSlug,
		MarketID:    p.MarketID,
		AssetID:     p.AssetID,
		Timestamp:   at,
	}
}
