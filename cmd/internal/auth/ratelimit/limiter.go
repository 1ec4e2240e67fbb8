package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRule is returned for rules with a non-positive limit or window.
var ErrInvalidRule = errors.New("ratelimit: invalid rule")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter counts hits per key under a rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// windowStart aligns now to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// decide builds a Decision from the hit count of the current window.
func decide(count int64, rule Rule, start, now time.Time) Decision {
	reset := start.Add(rule.Window)
	d := Decision{
		Allowed: count <= int64(rule.Limit),
		Limit:   rule.Limit,
		ResetAt: reset,
	}
	if rem := int64(rule.Limit) - count; rem > 0 {
		d.Remaining = int(rem)
	}
	if !d.Allowed {
		d.RetryAfter = reset.Sub(now)
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}
