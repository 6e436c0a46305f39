// Package scheduler runs the periodic sweep over tracked wallets and hands
// new change events to the notifier.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/notify"
	"github.com/ricardocisco/polymarket-tracker/pkg/pace"
	"github.com/ricardocisco/polymarket-tracker/pkg/store"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/identity"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
)

// Phase is what the sweep worker is doing right now.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePolling    Phase = "polling"
	PhaseEnriching  Phase = "enriching"
	PhaseDelivering Phase = "delivering"
)

// Engine is the part of the tracker the sweep drives.
type Engine interface {
	Detect(ctx context.Context, address string) ([]activity.ChangeEvent, error)
	Enrich(ctx context.Context, events []activity.ChangeEvent)
	Username(ctx context.Context, address string) (string, bool)
}

// Store is the wallet registry the sweep reads and stamps.
type Store interface {
	ListWallets(ctx context.Context) ([]store.Wallet, error)
	ListSubscriptions(ctx context.Context, address string) ([]store.Subscription, error)
	TouchWallet(ctx context.Context, address string, at time.Time) error
}

// Config holds sweep timings.
type Config struct {
	Interval      time.Duration
	WalletPause   time.Duration
	DeliveryPause time.Duration
	DedupTTL      time.Duration
}

// DefaultConfig returns the standard sweep timings.
func DefaultConfig() Config {
	return Config{
		Interval:      15 * time.Second,
		WalletPause:   time.Second,
		DeliveryPause: 500 * time.Millisecond,
		DedupTTL:      activity.DefaultDedupTTL,
	}
}

// Status is a point-in-time view of the sweep worker.
type Status struct {
	Phase         Phase         `json:"phase"`
	Wallet        string        `json:"wallet,omitempty"`
	Sweeps        uint64        `json:"sweeps"`
	LastSweepAt   time.Time     `json:"lastSweepAt,omitempty"`
	LastDuration  time.Duration `json:"lastDurationNs"`
	LastPolled    int           `json:"lastPolled"`
	Delivered     uint64        `json:"delivered"`
	Suppressed    uint64        `json:"suppressed"`
	Failed        uint64        `json:"failed"`
	PendingDedups int           `json:"pendingDedups"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock sets the clock used for last-checked stamps and dedup expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStatusListener is called on every phase change.
func WithStatusListener(fn func(Status)) Option {
	return func(s *Scheduler) { s.onStatus = fn }
}

// Scheduler owns the dedup set and the single sweep worker.
type Scheduler struct {
	config   Config
	engine   Engine
	store    Store
	notifier notify.Notifier

	dedup         *activity.Deduplicator
	walletPacer   *pace.Pacer
	deliveryPacer *pace.Pacer

	sweeping sync.Mutex
	mu       sync.RWMutex
	status   Status
	onStatus func(Status)

	cron    *cron.Cron
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.TrackerMetrics
}

// New creates a scheduler. It does nothing until Start or Sweep is called.
func New(config Config, engine Engine, st Store, notifier notify.Notifier, opts ...Option) *Scheduler {
	d := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.DedupTTL <= 0 {
		config.DedupTTL = d.DedupTTL
	}

	s := &Scheduler{
		config:        config,
		engine:        engine,
		store:         st,
		notifier:      notifier,
		walletPacer:   pace.New(config.WalletPause),
		deliveryPacer: pace.New(config.DeliveryPause),
		status:        Status{Phase: PhaseIdle},
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dedup = activity.NewDeduplicator(config.DedupTTL, s.now)
	return s
}

// Start schedules Sweep every Interval. A tick that fires while a sweep is
// still running is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cronLogger{s.logger.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := fmt.Sprintf("@every %s", s.config.Interval)
	if _, err := c.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Status returns the current worker status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.PendingDedups = s.dedup.Len()
	return st
}

func (s *Scheduler) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	st := s.status
	s.mu.Unlock()
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func (s *Scheduler) setPhase(p Phase, wallet string) {
	s.update(func(st *Status) {
		st.Phase = p
		st.Wallet = wallet
	})
}

// Sweep polls every tracked wallet once, in order, and delivers new events.
// One wallet's failure never stops the sweep. A call made while another sweep
// is running returns immediately.
func (s *Scheduler) Sweep(ctx context.Context) {
	if !s.sweeping.TryLock() {
		s.logger.Debug("sweep already running, skipped")
		return
	}
	defer s.sweeping.Unlock()

	start := s.now()
	if n := s.dedup.Evict(); n > 0 {
		s.logger.Debug("dedup entries evicted", zap.Int("count", n))
	}

	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		s.logger.Error("list wallets failed", zap.Error(err))
		s.setPhase(PhaseIdle, "")
		return
	}

	polled := 0
	for _, w := range wallets {
		if ctx.Err() != nil {
			break
		}
		if s.sweepWallet(ctx, w.Address) {
			polled++
		}
	}

	elapsed := s.now().Sub(start)
	s.metrics.RecordSweep(elapsed.Seconds(), polled)
	s.update(func(st *Status) {
		st.Phase = PhaseIdle
		st.Wallet = ""
		st.Sweeps++
		st.LastSweepAt = start
		st.LastDuration = elapsed
		st.LastPolled = polled
	})
	s.logger.Debug("sweep finished", zap.Int("wallets", len(wallets)), zap.Int("polled", polled), zap.Duration("elapsed", elapsed))
}

// sweepWallet reports whether the wallet was polled.
func (s *Scheduler) sweepWallet(ctx context.Context, address string) (polled bool) {
	log := s.logger.With(zap.String("wallet", address))
	defer func() {
		if r := recover(); r != nil {
			log.Error("wallet sweep panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if !identity.IsAddress(address) {
		log.Warn("skipping malformed wallet address")
		return false
	}
	subs, err := s.store.ListSubscriptions(ctx, address)
	if err != nil {
		log.Warn("list subscriptions failed", zap.Error(err))
		return false
	}
	if len(subs) == 0 {
		return false
	}

	if err := s.walletPacer.Wait(ctx); err != nil {
		return false
	}

	s.setPhase(PhasePolling, address)
	events, err := s.engine.Detect(ctx, address)
	if err != nil {
		log.Warn("poll failed", zap.String("kind", string(errs.KindOf(err))), zap.Error(err))
		return true
	}

	if len(events) > 0 {
		s.setPhase(PhaseEnriching, address)
		s.engine.Enrich(ctx, events)

		s.setPhase(PhaseDelivering, address)
		s.deliver(ctx, address, events, channelIDs(subs))
	}

	if err := s.store.TouchWallet(ctx, address, s.now()); err != nil {
		log.Warn("update last checked failed", zap.Error(err))
	}
	return true
}

func (s *Scheduler) deliver(ctx context.Context, address string, events []activity.ChangeEvent, channels []string) {
	var (
		username string
		looked   bool
	)
	for _, e := range events {
		if !s.dedup.ShouldDeliver(e.ID) {
			s.metrics.RecordSuppressed()
			s.update(func(st *Status) { st.Suppressed++ })
			continue
		}
		if !looked {
			username, _ = s.engine.Username(ctx, address)
			looked = true
		}
		if err := s.deliveryPacer.Wait(ctx); err != nil {
			return
		}

		err := s.notifier.Notify(ctx, notify.Delivery{Event: e, Username: username, ChannelIDs: channels})
		s.metrics.RecordDelivery(err == nil)
		if err != nil {
			s.logger.Warn("delivery failed",
				zap.String("wallet", address),
				zap.String("event", e.ID),
				zap.String("kind", string(e.Kind)),
				zap.Error(err),
			)
			s.update(func(st *Status) { st.Failed++ })
			continue
		}
		s.dedup.MarkDelivered(e.ID)
		s.update(func(st *Status) { st.Delivered++ })
		s.logger.Info("change delivered",
			zap.String("wallet", address),
			zap.String("kind", string(e.Kind)),
			zap.String("market", e.MarketTitle),
			zap.String("outcome", e.Outcome),
			zap.Float64("quantity", e.Quantity),
			zap.Float64("price", e.Price),
		)
	}
}

func channelIDs(subs []store.Subscription) []string {
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.ChannelID)
	}
	return out
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
