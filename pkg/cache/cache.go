// Package cache provides typed key/value caches with per-entry expiry: an
// in-memory implementation with an injectable clock and a Redis-backed one
// for sharing entries across processes.
package cache

import (
	"context"
	"time"
)

// Cache is a typed key/value store whose entries expire after a TTL.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (value V, found bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
