package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 250 * time.Millisecond

// RedisLimiter keeps fixed-window counters in Redis so that every replica
// shares the same budget.
type RedisLimiter struct {
	rdb     redis.Cmdable
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithPrefix sets the key prefix (default "sessiond:rl").
func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		if p := strings.TrimSpace(prefix); p != "" {
			l.prefix = p
		}
	}
}

// WithTimeout bounds each Allow round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(l *RedisLimiter) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewRedisLimiter wraps a go-redis client. The client is owned by the caller.
func NewRedisLimiter(rdb redis.Cmdable, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:     rdb,
		prefix:  "sessiond:rl",
		timeout: defaultRedisTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow implements Limiter with INCR and PEXPIRE in one pipeline.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if !rule.Valid() {
		return Decision{}, ErrInvalidRule
	}

	now := l.now()
	start := windowStart(now, rule.Window)
	k := l.key(rule.Name, key, start, rule.Window)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		// Keep the key one extra window so late replicas still see it.
		p.PExpire(ctx, k, 2*rule.Window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	return decide(incr.Val(), rule, start, now), nil
}

func (l *RedisLimiter) key(endpoint, client string, start time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, endpoint, client, start.UnixMilli()/window.Milliseconds())
}
