package activity

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a delivered event id is remembered.
const DefaultDedupTTL = 2 * time.Minute

// Deduplicator remembers recently delivered event ids.
type Deduplicator struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	delivered map[string]time.Time
}

// NewDeduplicator creates a deduplicator. A nil clock uses time.Now.
func NewDeduplicator(ttl time.Duration, now func() time.Time) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{ttl: ttl, now: now, delivered: make(map[string]time.Time)}
}

// ShouldDeliver reports whether id has not been delivered within the TTL.
func (d *Deduplicator) ShouldDeliver(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.delivered[id]
	if !ok {
		return true
	}
	return d.now().Sub(at) > d.ttl
}

// MarkDelivered records id as delivered now.
func (d *Deduplicator) MarkDelivered(id string) {
	d.mu.Lock()
	d.delivered[id] = d.now()
	d.mu.Unlock()
}

// Evict removes entries older than the TTL and returns how many were dropped.
func (d *Deduplicator) Evict() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	n := 0
	for id, at := range d.delivered {
		if now.Sub(at) > d.ttl {
			delete(d.delivered, id)
			n++
		}
	}
	return n
}

// Len returns the number of remembered ids.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}
