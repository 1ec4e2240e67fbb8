package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newMemory(t0 time.Time) (*MemoryLimiter, *fakeClock) {
	clk := &fakeClock{t: t0}
	l := NewMemoryLimiter()
	l.now = clk.Now
	return l, clk
}

func TestMemoryLimiter_NPlusOneRejected(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l, clk := newMemory(start)
	rule := Rule{Name: EndpointLogin, Limit: 3, Window: time.Minute, OnFail: FailClosed}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1", rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}

	clk.t = start.Add(20 * time.Second)
	d, err := l.Allow(ctx, "10.0.0.1", rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)
	assert.Equal(t, start.Add(time.Minute), d.ResetAt)

	clk.t = start.Add(time.Minute)
	d, err = l.Allow(ctx, "10.0.0.1", rule)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window restores the budget")
}

func TestMemoryLimiter_KeysAndEndpointsAreIndependent(t *testing.T) {
	l, _ := newMemory(time.Now())
	ctx := context.Background()
	login := Rule{Name: EndpointLogin, Limit: 1, Window: time.Minute, OnFail: FailClosed}
	refresh := Rule{Name: EndpointRefresh, Limit: 1, Window: time.Minute, OnFail: FailOpen}

	d, _ := l.Allow(ctx, "a", login)
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a", login)
	assert.False(t, d.Allowed)

	d, _ = l.Allow(ctx, "b", login)
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a", refresh)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_SweepsStaleWindows(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l, clk := newMemory(start)
	rule := Rule{Name: EndpointRefresh, Limit: 5, Window: time.Second, OnFail: FailOpen}
	ctx := context.Background()

	for i := 0; i < sweepEvery-1; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("client-%d", i), rule)
		require.NoError(t, err)
	}
	require.Equal(t, sweepEvery-1, l.Len())

	clk.t = start.Add(time.Hour)
	_, err := l.Allow(ctx, "late", rule)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_InvalidRule(t *testing.T) {
	l := NewMemoryLimiter()
	_, err := l.Allow(context.Background(), "k", Rule{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidRule)
}
