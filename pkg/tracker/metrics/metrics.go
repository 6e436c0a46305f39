// Package metrics provides Prometheus metrics for the wallet tracker.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// TrackerMetrics collects and exposes tracker Prometheus metrics. A nil
// *TrackerMetrics is valid and records nothing.
type TrackerMetrics struct {
	registry *prometheus.Registry

	// Polling
	PollsTotal     *prometheus.CounterVec
	SweepDuration  *prometheus.HistogramVec
	TrackedWallets *prometheus.GaugeVec

	// Change events
	EventsTotal     *prometheus.CounterVec
	DedupSuppressed *prometheus.CounterVec

	// Delivery
	DeliveriesTotal *prometheus.CounterVec

	// Upstream and caches
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
}

// NewTrackerMetrics creates a new collector on its own registry.
func NewTrackerMetrics() *TrackerMetrics {
	registry := prometheus.NewRegistry()

	tm := &TrackerMetrics{
		registry: registry,

		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_polls_total",
				Help: "Wallet polls by outcome",
			},
			[]string{"status"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_sweep_duration_seconds",
				Help:    "Wall time of a full sweep over tracked wallets",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
			},
			[]string{},
		),
		TrackedWallets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracker_tracked_wallets",
				Help: "Wallets seen in the last sweep",
			},
			[]string{},
		),

		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_change_events_total",
				Help: "Change events produced by snapshot diffs",
			},
			[]string{"kind"},
		),
		DedupSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_dedup_suppressed_total",
				Help: "Events skipped because they were already delivered",
			},
			[]string{},
		),

		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_deliveries_total",
				Help: "Event deliveries by outcome",
			},
			[]string{"status"},
		),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_upstream_requests_total",
				Help: "Upstream lookups by source and outcome",
			},
			[]string{"source", "status"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_upstream_latency_seconds",
				Help:    "Upstream lookup latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"source"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_lookups_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}

	tm.registerAll()
	return tm
}

func (tm *TrackerMetrics) registerAll() {
	tm.registry.MustRegister(
		tm.PollsTotal,
		tm.SweepDuration,
		tm.TrackedWallets,
		tm.EventsTotal,
		tm.DedupSuppressed,
		tm.DeliveriesTotal,
		tm.UpstreamRequests,
		tm.UpstreamLatency,
		tm.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the Prometheus registry.
func (tm *TrackerMetrics) Registry() *prometheus.Registry {
	if tm == nil {
		return prometheus.NewRegistry()
	}
	return tm.registry
}

// RecordPoll records one wallet poll.
func (tm *TrackerMetrics) RecordPoll(ok bool) {
	if tm == nil {
		return
	}
	tm.PollsTotal.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordSweep records a completed sweep.
func (tm *TrackerMetrics) RecordSweep(durationSec float64, wallets int) {
	if tm == nil {
		return
	}
	tm.SweepDuration.WithLabelValues().Observe(durationSec)
	tm.TrackedWallets.WithLabelValues().Set(float64(wallets))
}

// RecordEvent counts a produced change event.
func (tm *TrackerMetrics) RecordEvent(kind string) {
	if tm == nil {
		return
	}
	tm.EventsTotal.WithLabelValues(kind).Inc()
}

// RecordSuppressed counts a duplicate event that was not delivered.
func (tm *TrackerMetrics) RecordSuppressed() {
	if tm == nil {
		return
	}
	tm.DedupSuppressed.WithLabelValues().Inc()
}

// RecordDelivery records one delivery attempt.
func (tm *TrackerMetrics) RecordDelivery(ok bool) {
	if tm == nil {
		return
	}
	tm.DeliveriesTotal.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordUpstream records one upstream lookup.
func (tm *TrackerMetrics) RecordUpstream(source string, ok bool, latencySec float64) {
	if tm == nil {
		return
	}
	tm.UpstreamRequests.WithLabelValues(source, statusLabel(ok)).Inc()
	tm.UpstreamLatency.WithLabelValues(source).Observe(latencySec)
}

// RecordCache records a cache hit or miss.
func (tm *TrackerMetrics) RecordCache(cache string, hit bool) {
	if tm == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	tm.CacheLookups.WithLabelValues(cache, result).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

var (
	defaultMetrics *TrackerMetrics
	defaultOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *TrackerMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewTrackerMetrics()
	})
	return defaultMetrics
}
