package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTL[string](WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "k", "v", 30*time.Second))

	clock.Advance(30 * time.Second)
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "entry should be live at exactly its ttl")
	require.Equal(t, "v", v)

	clock.Advance(time.Millisecond)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "expired entry should be dropped on read")
}

func TestTTLNoExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[int](WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "k", 7, 0))
	clock.Advance(365 * 24 * time.Hour)

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestTTLPurgeAndDelete(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[int](WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "short", 1, time.Second))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "gone", 3, time.Hour))
	require.NoError(t, c.Delete(ctx, "gone"))

	clock.Advance(2 * time.Second)
	require.Equal(t, 1, c.Purge())
	require.Equal(t, 1, c.Len())

	_, ok, _ := c.Get(ctx, "long")
	require.True(t, ok)
}

func TestTTLImplementsCache(t *testing.T) {
	var _ Cache[string] = NewTTL[string]()
	var _ Cache[string] = (*Redis[string])(nil)
}
