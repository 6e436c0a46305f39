// Package notify delivers change events to subscribed channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
)

// Delivery is one change event addressed to the channels following a wallet.
type Delivery struct {
	Event      activity.ChangeEvent `json:"event"`
	Username   string               `json:"username,omitempty"`
	ChannelIDs []string             `json:"channelIds"`
}

// Notifier sends a delivery. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, d Delivery) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d Delivery) error

func (f NotifierFunc) Notify(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Multi fans a delivery out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, d Delivery) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MarketURL links to the market page, selecting the outcome when its token
// id is known. It falls back to the wallet's profile when no event slug is
// known.
func MarketURL(e activity.ChangeEvent) string {
	if e.EventSlug == "" {
		return ProfileURL(e.Wallet)
	}
	u := polymarket.SiteURL + "/event/" + e.EventSlug
	if e.MarketSlug != "" && e.MarketSlug != e.EventSlug {
		u += "/" + e.MarketSlug
	}
	if e.OutcomeTokenID != "" {
		u += "?tid=" + e.OutcomeTokenID
	}
	return u
}

// ProfileURL links to a wallet's public profile.
func ProfileURL(address string) string {
	return polymarket.SiteURL + "/profile/" + address
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// Label is the action headline for an event kind.
func Label(k activity.Kind) string {
	switch k {
	case activity.KindOpened:
		return "BOUGHT (new position)"
	case activity.KindIncreased:
		return "BOUGHT (added)"
	case activity.KindDecreased:
		return "SOLD (reduced)"
	case activity.KindClosed:
		return "SOLD (closed)"
	}
	return strings.ToUpper(string(k))
}

func walletName(d Delivery) string {
	if d.Username != "" {
		return fmt.Sprintf("%s (%s)", d.Username, ShortAddress(d.Event.Wallet))
	}
	return ShortAddress(d.Event.Wallet)
}
