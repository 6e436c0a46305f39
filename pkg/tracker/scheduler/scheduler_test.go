package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ricardocisco/polymarket-tracker/pkg/notify"
	"github.com/ricardocisco/polymarket-tracker/pkg/store"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
)

const (
	walletA = "0x00000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000bb"
)

type fakeEngine struct {
	mu       sync.Mutex
	events   map[string][]activity.ChangeEvent
	errs     map[string]error
	panics   map[string]bool
	polled    []string
	enriched  int
	usernames int
}

func (f *fakeEngine) Detect(_ context.Context, address string) ([]activity.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, address)
	if f.panics[address] {
		panic("boom")
	}
	if err := f.errs[address]; err != nil {
		return nil, err
	}
	return append([]activity.ChangeEvent(nil), f.events[address]...), nil
}

func (f *fakeEngine) Enrich(_ context.Context, events []activity.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enriched += len(events)
	for i := range events {
		events[i].MarketSlug = "enriched"
	}
}

func (f *fakeEngine) Username(context.Context, string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernames++
	return "alice", true
}

type recorder struct {
	mu   sync.Mutex
	got  []notify.Delivery
	at   []time.Time
	fail bool
}

func (r *recorder) Notify(_ context.Context, d notify.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("discord down")
	}
	r.got = append(r.got, d)
	r.at = append(r.at, time.Now())
	return nil
}

func event(id, wallet string) activity.ChangeEvent {
	return activity.ChangeEvent{ID: id, Wallet: wallet, Kind: activity.KindOpened, Direction: activity.Buy}
}

func fastConfig() Config {
	return Config{Interval: time.Hour, DedupTTL: 2 * time.Minute}
}

func TestSweepDeliversToSubscribedChannels(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)
	_, _ = st.Track(ctx, "chan-2", walletA)

	eng := &fakeEngine{events: map[string][]activity.ChangeEvent{
		walletA: {event("e1", walletA), event("e2", walletA)},
	}}
	rec := &recorder{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var phases []Phase
	s := New(fastConfig(), eng, st, rec,
		WithClock(func() time.Time { return now }),
		WithStatusListener(func(s Status) { phases = append(phases, s.Phase) }),
	)
	s.Sweep(ctx)

	require.Len(t, rec.got, 2)
	require.Equal(t, "alice", rec.got[0].Username)
	require.ElementsMatch(t, []string{"chan-1", "chan-2"}, rec.got[0].ChannelIDs)
	require.Equal(t, "enriched", rec.got[0].Event.MarketSlug)

	require.Equal(t, []Phase{PhasePolling, PhaseEnriching, PhaseDelivering, PhaseIdle}, dedupPhases(phases))

	wallets, _ := st.ListWallets(ctx)
	require.NotNil(t, wallets[0].LastCheckedAt)
	require.True(t, now.Equal(*wallets[0].LastCheckedAt))

	status := s.Status()
	require.Equal(t, PhaseIdle, status.Phase)
	require.EqualValues(t, 1, status.Sweeps)
	require.EqualValues(t, 2, status.Delivered)
	require.Equal(t, 1, status.LastPolled)
}

func dedupPhases(in []Phase) []Phase {
	var out []Phase
	for _, p := range in {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

func TestSweepSuppressesRepeatsWithinTTL(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)

	eng := &fakeEngine{events: map[string][]activity.ChangeEvent{walletA: {event("e1", walletA)}}}
	rec := &recorder{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(fastConfig(), eng, st, rec, WithClock(func() time.Time { return now }))

	s.Sweep(ctx)
	now = now.Add(119 * time.Second)
	s.Sweep(ctx)
	require.Len(t, rec.got, 1)
	require.EqualValues(t, 1, s.Status().Suppressed)

	now = now.Add(2 * time.Second)
	s.Sweep(ctx)
	require.Len(t, rec.got, 2)
}

func TestUsernameSkippedWhenAllSuppressed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)

	eng := &fakeEngine{events: map[string][]activity.ChangeEvent{
		walletA: {event("e1", walletA), event("e2", walletA)},
	}}
	rec := &recorder{}
	s := New(fastConfig(), eng, st, rec)

	s.Sweep(ctx)
	require.Len(t, rec.got, 2)
	require.Equal(t, 1, eng.usernames)

	s.Sweep(ctx)
	require.Len(t, rec.got, 2)
	require.EqualValues(t, 2, s.Status().Suppressed)
	require.Equal(t, 1, eng.usernames, "no lookup for a fully suppressed batch")
}

func TestDeliveriesArePaced(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)

	eng := &fakeEngine{events: map[string][]activity.ChangeEvent{
		walletA: {event("e1", walletA), event("e2", walletA), event("e3", walletA)},
	}}
	rec := &recorder{}
	const gap = 100 * time.Millisecond
	s := New(Config{Interval: time.Hour, DeliveryPause: gap}, eng, st, rec)

	s.Sweep(ctx)
	require.Len(t, rec.at, 3)
	for i := 1; i < len(rec.at); i++ {
		require.GreaterOrEqual(t, rec.at[i].Sub(rec.at[i-1]), gap-10*time.Millisecond)
	}
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)

	eng := &fakeEngine{events: map[string][]activity.ChangeEvent{walletA: {event("e1", walletA)}}}
	rec := &recorder{fail: true}
	s := New(fastConfig(), eng, st, rec)

	s.Sweep(ctx)
	require.EqualValues(t, 1, s.Status().Failed)
	require.Zero(t, s.Status().PendingDedups)

	rec.fail = false
	s.Sweep(ctx)
	require.Len(t, rec.got, 1)
}

func TestSweepSkipsMalformedAndUnsubscribedWallets(t *testing.T) {
	ctx := context.Background()
	st := &staticStore{
		wallets: []store.Wallet{{Address: "not-an-address"}, {Address: walletA}, {Address: walletB}},
		subs:    map[string][]store.Subscription{walletB: {{ChannelID: "chan-1", WalletAddress: walletB}}},
	}
	eng := &fakeEngine{}
	s := New(fastConfig(), eng, st, &recorder{})

	s.Sweep(ctx)
	require.Equal(t, []string{walletB}, eng.polled)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)
	_, _ = st.Track(ctx, "chan-1", walletB)
	const walletC = "0x00000000000000000000000000000000000000cc"
	_, _ = st.Track(ctx, "chan-1", walletC)

	eng := &fakeEngine{
		errs:   map[string]error{walletA: errors.New("upstream 502")},
		panics: map[string]bool{walletB: true},
		events: map[string][]activity.ChangeEvent{walletC: {event("e1", walletC)}},
	}
	rec := &recorder{}
	s := New(fastConfig(), eng, st, rec)

	require.NotPanics(t, func() { s.Sweep(ctx) })
	require.Equal(t, []string{walletA, walletB, walletC}, eng.polled)
	require.Len(t, rec.got, 1)
	require.Equal(t, walletC, rec.got[0].Event.Wallet)

	wallets, _ := st.ListWallets(ctx)
	for _, w := range wallets {
		if w.Address == walletC {
			require.NotNil(t, w.LastCheckedAt)
		} else {
			require.Nil(t, w.LastCheckedAt)
		}
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, _ = st.Track(ctx, "chan-1", walletA)
	eng := &fakeEngine{}

	s := New(Config{Interval: time.Second}, eng, st, &recorder{})
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Status().Sweeps >= 1 }, 3*time.Second, 20*time.Millisecond)
}

type staticStore struct {
	wallets []store.Wallet
	subs    map[string][]store.Subscription
}

func (s *staticStore) ListWallets(context.Context) ([]store.Wallet, error) {
	return s.wallets, nil
}

func (s *staticStore) ListSubscriptions(_ context.Context, address string) ([]store.Subscription, error) {
	return s.subs[address], nil
}

func (s *staticStore) TouchWallet(context.Context, string, time.Time) error {
	return nil
}
