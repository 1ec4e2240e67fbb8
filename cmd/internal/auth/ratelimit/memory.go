package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often stale windows are dropped.
const sweepEvery = 1024

type counter struct {
	start time.Time
	end   time.Time
	count int64
}

// MemoryLimiter is an in-process fixed-window limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	calls    int
	now      func() time.Time
}

// NewMemoryLimiter returns an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !rule.Valid() {
		return Decision{}, ErrInvalidRule
	}

	now := l.now()
	start := windowStart(now, rule.Window)
	k := rule.Name + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	c, ok := l.counters[k]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start, end: start.Add(rule.Window)}
		l.counters[k] = c
	}
	c.count++

	return decide(c.count, rule, start, now), nil
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for k, c := range l.counters {
		if !now.Before(c.end) {
			delete(l.counters, k)
		}
	}
}

// Len returns the number of live counters.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
