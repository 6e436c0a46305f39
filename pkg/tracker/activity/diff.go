package activity

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/quote"
)

// PositionSource fetches a wallet's current positions, uncached.
type PositionSource interface {
	FetchOpenPositions(ctx context.Context, address string) ([]portfolio.Position, error)
}

// Quoter prices a token for a trade direction, returning 0 when unavailable.
type Quoter interface {
	Price(ctx context.Context, assetID string, intent quote.Intent) float64
}

// Snapshot is the last observed set of positions for a wallet.
type Snapshot struct {
	order     []portfolio.Key
	positions map[portfolio.Key]portfolio.Position
}

// NewSnapshot indexes positions by key, keeping their order.
func NewSnapshot(ps []portfolio.Position) *Snapshot {
	s := &Snapshot{
		order:     make([]portfolio.Key, 0, len(ps)),
		positions: make(map[portfolio.Key]portfolio.Position, len(ps)),
	}
	for _, p := range ps {
		if _, dup := s.positions[p.Key]; !dup {
			s.order = append(s.order, p.Key)
		}
		s.positions[p.Key] = p
	}
	return s
}

// Len returns the number of positions.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Get looks up a position by key.
func (s *Snapshot) Get(k portfolio.Key) (portfolio.Position, bool) {
	p, ok := s.positions[k]
	return p, ok
}

// Positions returns the positions in observation order.
func (s *Snapshot) Positions() []portfolio.Position {
	out := make([]portfolio.Position, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.positions[k])
	}
	return out
}

// DiffEngine compares fresh positions against the stored snapshot per wallet.
type DiffEngine struct {
	source PositionSource
	quotes Quoter
	now    func() time.Time
	logger *zap.Logger

	metrics *metrics.TrackerMetrics

	mu        sync.Mutex
	snapshots map[string]*Snapshot
	// generation per wallet, bumped by Forget
	gens map[string]uint64
}

// DiffOption configures a DiffEngine.
type DiffOption func(*DiffEngine)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) DiffOption {
	return func(d *DiffEngine) {
		d.now = now
	}
}

// WithDiffLogger sets the logger.
func WithDiffLogger(l *zap.Logger) DiffOption {
	return func(d *DiffEngine) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDiffMetrics sets the metrics collector.
func WithDiffMetrics(m *metrics.TrackerMetrics) DiffOption {
	return func(d *DiffEngine) {
		d.metrics = m
	}
}

// NewDiffEngine creates a diff engine with no stored snapshots.
func NewDiffEngine(source PositionSource, quotes Quoter, opts ...DiffOption) *DiffEngine {
	d := &DiffEngine{
		source:    source,
		quotes:    quotes,
		now:       time.Now,
		logger:    zap.NewNop(),
		snapshots: make(map[string]*Snapshot),
		gens:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff fetches the wallet's positions and returns the transitions since the
// previous successful call. The first call for a wallet stores a baseline
// and returns nothing. On fetch failure the snapshot is left untouched.
// A Forget that lands while Diff is running wins: the result is discarded and
// nothing is stored.
func (d *DiffEngine) Diff(ctx context.Context, address string) ([]ChangeEvent, error) {
	d.mu.Lock()
	gen := d.gens[address]
	d.mu.Unlock()

	current, err := d.source.FetchOpenPositions(ctx, address)
	d.metrics.RecordPoll(err == nil)
	if err != nil {
		return nil, err
	}
	next := NewSnapshot(current)

	d.mu.Lock()
	prev, seen := d.snapshots[address]
	d.mu.Unlock()

	if !seen {
		if !d.store(address, gen, next) {
			return nil, nil
		}
		d.logger.Info("baseline stored",
			zap.String("wallet", address),
			zap.Int("positions", next.Len()))
		return nil, nil
	}

	at := d.now()
	var opened, changed, closed []ChangeEvent

	for _, k := range next.order {
		cur := next.positions[k]
		old, ok := prev.Get(k)
		if !ok {
			opened = append(opened, newEvent(address, cur, KindOpened, cur.EntryPrice, cur.Size, at))
			continue
		}

		delta := cur.Size - old.Size
		switch {
		case delta > SizeThreshold:
			changed = append(changed, newEvent(address, cur, KindIncreased, increasePrice(old, cur, delta), delta, at))
		case delta < -SizeThreshold:
			price := d.quotes.Price(ctx, cur.AssetID, quote.Sell)
			if price <= 0 {
				price = cur.CurrentPrice
			}
			changed = append(changed, newEvent(address, cur, KindDecreased, price, math.Abs(delta), at))
		}
	}

	for _, k := range prev.order {
		if _, ok := next.positions[k]; ok {
			continue
		}
		old := prev.positions[k]
		price := d.quotes.Price(ctx, old.AssetID, quote.Sell)
		if price <= 0 {
			price = old.CurrentPrice
		}
		closed = append(closed, newEvent(address, old, KindClosed, price, old.Size, at))
	}

	if !d.store(address, gen, next) {
		return nil, nil
	}

	events := make([]ChangeEvent, 0, len(opened)+len(changed)+len(closed))
	events = append(events, opened...)
	events = append(events, changed...)
	events = append(events, closed...)
	for _, e := range events {
		d.metrics.RecordEvent(string(e.Kind))
	}
	if len(events) > 0 {
		d.logger.Info("changes detected",
			zap.String("wallet", address),
			zap.Int("opened", len(opened)),
			zap.Int("changed", len(changed)),
			zap.Int("closed", len(closed)))
	}
	return events, nil
}

// increasePrice estimates the fill price of an increase from the change in
// invested amount. Upstream reports a blended average entry, so this is an
// approximation; it falls back to the current price when not positive.
func increasePrice(old, cur portfolio.Position, delta float64) float64 {
	avg := (cur.Size*cur.EntryPrice - old.Size*old.EntryPrice) / delta
	if avg > 0 {
		return avg
	}
	return cur.CurrentPrice
}

// store saves s unless the wallet was forgotten since gen was read.
func (d *DiffEngine) store(address string, gen uint64, s *Snapshot) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gens[address] != gen {
		d.logger.Debug("wallet forgotten during poll, result dropped", zap.String("wallet", address))
		return false
	}
	d.snapshots[address] = s
	return true
}

// Snapshot returns the stored snapshot for address, if any.
func (d *DiffEngine) Snapshot(address string) (*Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.snapshots[address]
	return s, ok
}

// Forget drops the snapshot for address; the next Diff stores a new baseline.
func (d *DiffEngine) Forget(address string) {
	d.mu.Lock()
	delete(d.snapshots, address)
	d.gens[address]++
	d.mu.Unlock()
}
