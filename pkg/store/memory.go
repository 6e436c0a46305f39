package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process store used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	nextID  uint64
	wallets []Wallet
	subs    []Subscription
	now     func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) ListWallets(context.Context) ([]Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Wallet, len(m.wallets))
	copy(out, m.wallets)
	return out, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, address string) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscription
	for _, s := range m.subs {
		if s.WalletAddress == address {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) TouchWallet(_ context.Context, address string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.wallets {
		if m.wallets[i].Address == address {
			t := at.UTC()
			m.wallets[i].LastCheckedAt = &t
		}
	}
	return nil
}

func (m *Memory) Track(_ context.Context, channelID, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.walletIndex(address) < 0 {
		m.nextID++
		m.wallets = append(m.wallets, Wallet{ID: m.nextID, Address: address, CreatedAt: m.now()})
	}
	for _, s := range m.subs {
		if s.ChannelID == channelID && s.WalletAddress == address {
			return false, nil
		}
	}
	m.nextID++
	m.subs = append(m.subs, Subscription{ID: m.nextID, ChannelID: channelID, WalletAddress: address, CreatedAt: m.now()})
	return true, nil
}

func (m *Memory) Untrack(_ context.Context, channelID, address string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	kept := m.subs[:0]
	var remaining int64
	for _, s := range m.subs {
		if s.ChannelID == channelID && s.WalletAddress == address {
			found = true
			continue
		}
		if s.WalletAddress == address {
			remaining++
		}
		kept = append(kept, s)
	}
	m.subs = kept
	if !found {
		return 0, ErrNotSubscribed
	}
	if remaining == 0 {
		if i := m.walletIndex(address); i >= 0 {
			m.wallets = append(m.wallets[:i], m.wallets[i+1:]...)
		}
	}
	return remaining, nil
}

func (m *Memory) ListChannelWallets(_ context.Context, channelID string) ([]Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Wallet
	for _, s := range m.subs {
		if s.ChannelID != channelID {
			continue
		}
		if i := m.walletIndex(s.WalletAddress); i >= 0 {
			out = append(out, m.wallets[i])
		}
	}
	return out, nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channels := make(map[string]struct{})
	for _, s := range m.subs {
		channels[s.ChannelID] = struct{}{}
	}
	return Stats{
		Wallets:       int64(len(m.wallets)),
		Subscriptions: int64(len(m.subs)),
		Channels:      int64(len(channels)),
	}, nil
}

func (m *Memory) walletIndex(address string) int {
	for i, w := range m.wallets {
		if w.Address == address {
			return i
		}
	}
	return -1
}
