// Package pace spaces out successive calls against rate-sensitive upstreams.
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer lets the first call through immediately and holds every later call
// until at least the configured gap has passed since the previous one.
type Pacer struct {
	gap     time.Duration
	limiter *rate.Limiter
}

// New creates a pacer. A non-positive gap never blocks.
func New(gap time.Duration) *Pacer {
	if gap <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{gap: gap, limiter: rate.NewLimiter(rate.Every(gap), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Gap returns the configured spacing.
func (p *Pacer) Gap() time.Duration {
	if p == nil {
		return 0
	}
	return p.gap
}
