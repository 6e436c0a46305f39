package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	v       V
	expires time.Time
	noexp   bool
}

// TTL is an in-memory Cache. Expired entries are dropped lazily on Get and
// in bulk by Purge.
type TTL[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

// Option configures a TTL cache.
type Option func(*ttlOptions)

type ttlOptions struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *ttlOptions) {
		o.now = now
	}
}

// NewTTL creates an empty in-memory cache.
func NewTTL[V any](opts ...Option) *TTL[V] {
	o := ttlOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[V]{items: map[string]entry[V]{}, now: o.now}
}

func (c *TTL[V]) Get(_ context.Context, key string) (V, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false, nil
	}
	if c.expired(it) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && c.expired(cur) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false, nil
	}
	return it.v, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *TTL[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	it := entry[V]{v: value}
	if ttl <= 0 {
		it.noexp = true
	} else {
		it.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}

func (c *TTL[V]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *TTL[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, it := range c.items {
		if c.expired(it) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// An entry is live while its age is at most the TTL.
func (c *TTL[V]) expired(it entry[V]) bool {
	return !it.noexp && c.now().After(it.expires)
}
