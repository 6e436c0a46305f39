// Package store persists tracked wallets and the channels subscribed to them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotSubscribed is returned by Untrack when the channel does not follow
// the wallet.
var ErrNotSubscribed = errors.New("store: channel is not subscribed to wallet")

// Wallet is a tracked address.
type Wallet struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Address       string     `gorm:"size:42;not null;uniqueIndex" json:"address"`
	LastCheckedAt *time.Time `gorm:"type:timestamptz" json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Subscription links a delivery channel to a wallet. A channel follows a
// wallet at most once.
type Subscription struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChannelID     string    `gorm:"size:64;not null;uniqueIndex:idx_channel_wallet" json:"channelId"`
	WalletAddress string    `gorm:"size:42;not null;uniqueIndex:idx_channel_wallet;index" json:"walletAddress"`
	CreatedAt     time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Stats summarises store contents.
type Stats struct {
	Wallets       int64 `json:"wallets"`
	Subscriptions int64 `json:"subscriptions"`
	Channels      int64 `json:"channels"`
}

// Store is the persistence boundary. The tracker core only lists wallets,
// lists their subscriptions and writes back the last-checked time; the rest
// serves the admin API.
type Store interface {
	ListWallets(ctx context.Context) ([]Wallet, error)
	ListSubscriptions(ctx context.Context, address string) ([]Subscription, error)
	TouchWallet(ctx context.Context, address string, at time.Time) error

	// Track subscribes channelID to address, creating the wallet if needed.
	// created is false when the subscription already existed.
	Track(ctx context.Context, channelID, address string) (created bool, err error)
	// Untrack removes the subscription and returns how many channels still
	// follow the wallet. The wallet row is deleted when none remain.
	Untrack(ctx context.Context, channelID, address string) (remaining int64, err error)
	ListChannelWallets(ctx context.Context, channelID string) ([]Wallet, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}
