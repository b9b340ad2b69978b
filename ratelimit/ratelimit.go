// Package ratelimit implements the atomic, hour-bucketed send-throughput
// ceilings shared by every delivery worker process. Redis is the single
// source of truth; there is no in-process counter cache, so every
// worker process observes the same admission state.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "reachSessionLimit:"
const globalScope = "global"
const bucketTTL = time.Hour

// Decision is the outcome of a tryAdmit call.
type Decision struct {
	Allowed      bool
	Remaining    int
	ResetInstant time.Time
}

// Snapshot is a read-only view of current counters for observability.
type Snapshot struct {
	GlobalCount    int
	GlobalCeiling  int
	SenderCount    int
	SenderCeiling  int
	HasSenderScope bool
}

// Limiter is the Rate Limiter component: an atomic check/increment/
// rollback admission gate backed by hour-keyed Redis counters.
type Limiter interface {
	// TryAdmit atomically increments the global counter (and, if
	// senderID is non-empty, the sender counter) and admits the send
	// only if both stay within their ceilings. senderID is optional —
	// the ingress does not currently attach one to every task.
	TryAdmit(ctx context.Context, senderID string) (Decision, error)

	// Inspect returns a read-only snapshot of the current hour's
	// counters without mutating them.
	Inspect(ctx context.Context, senderID string) (Snapshot, error)
}

// RedisLimiter implements Limiter with plain INCR/EXPIRE/DECR commands.
// This check-then-decrement pattern can over-admit by at most one per
// contending caller per ceiling; the spec treats this as acceptable at
// the target scale and permits (but does not require) a server-side
// atomic script as a stricter alternative.
type RedisLimiter struct {
	client        goredis.Cmdable
	globalCeiling int
	senderCeiling int
	now           func() time.Time
}

// Option configures a RedisLimiter.
type Option func(*RedisLimiter)

// WithClock overrides the time source; used by tests to pin hour
// bucket boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *RedisLimiter) { l.now = now }
}

// NewRedisLimiter creates a RedisLimiter with the given global and
// default per-sender hourly ceilings.
func NewRedisLimiter(client goredis.Cmdable, globalCeiling, senderCeiling int, opts ...Option) *RedisLimiter {
	l := &RedisLimiter{
		client:        client,
		globalCeiling: globalCeiling,
		senderCeiling: senderCeiling,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// hourKey returns the UTC hour-bucket key for scope, matching the
// compatibility-critical layout reachSessionLimit:<scope>:YYYY-MM-DD-HH.
func hourKey(scope string, at time.Time) string {
	return keyPrefix + scope + ":" + at.UTC().Format("2006-01-02-15")
}

// resetInstant returns the start of the next UTC hour after at.
func resetInstant(at time.Time) time.Time {
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
}

// TryAdmit implements Limiter.
func (l *RedisLimiter) TryAdmit(ctx context.Context, senderID string) (Decision, error) {
	now := l.now()
	globalKey := hourKey(globalScope, now)

	globalCount, err := l.incrWithTTL(ctx, globalKey)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr global: %w", err)
	}

	if globalCount > l.globalCeiling {
		if err := l.decr(ctx, globalKey); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: rollback global: %w", err)
		}
		return Decision{Allowed: false, Remaining: 0, ResetInstant: resetInstant(now)}, nil
	}

	if senderID == "" {
		return Decision{
			Allowed:      true,
			Remaining:    remaining(l.globalCeiling, globalCount),
			ResetInstant: resetInstant(now),
		}, nil
	}

	senderKey := hourKey(senderID, now)
	senderCount, err := l.incrWithTTL(ctx, senderKey)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr sender: %w", err)
	}

	if senderCount > l.senderCeiling {
		// Rollback order per spec §4.1: sender, then global.
		if err := l.decr(ctx, senderKey); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: rollback sender: %w", err)
		}
		if err := l.decr(ctx, globalKey); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: rollback global: %w", err)
		}
		return Decision{Allowed: false, Remaining: 0, ResetInstant: resetInstant(now)}, nil
	}

	return Decision{
		Allowed:      true,
		Remaining:    remaining(l.senderCeiling, senderCount),
		ResetInstant: resetInstant(now),
	}, nil
}

// Inspect implements Limiter.
func (l *RedisLimiter) Inspect(ctx context.Context, senderID string) (Snapshot, error) {
	now := l.now()

	globalCount, err := l.get(ctx, hourKey(globalScope, now))
	if err != nil {
		return Snapshot{}, fmt.Errorf("ratelimit: inspect global: %w", err)
	}

	snap := Snapshot{
		GlobalCount:   globalCount,
		GlobalCeiling: l.globalCeiling,
	}

	if senderID != "" {
		senderCount, err := l.get(ctx, hourKey(senderID, now))
		if err != nil {
			return Snapshot{}, fmt.Errorf("ratelimit: inspect sender: %w", err)
		}
		snap.HasSenderScope = true
		snap.SenderCount = senderCount
		snap.SenderCeiling = l.senderCeiling
	}

	return snap, nil
}

// incrWithTTL increments key and arms a 3600s TTL only on the first
// write for that key (INCR returning 1).
func (l *RedisLimiter) incrWithTTL(ctx context.Context, key string) (int, error) {
	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		if err := l.client.Expire(ctx, key, bucketTTL).Err(); err != nil {
			return 0, err
		}
	}
	return int(val), nil
}

func (l *RedisLimiter) decr(ctx context.Context, key string) error {
	return l.client.Decr(ctx, key).Err()
}

func (l *RedisLimiter) get(ctx context.Context, key string) (int, error) {
	val, err := l.client.Get(ctx, key).Int()
	if err != nil {
		if err == goredis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

func remaining(ceiling, count int) int {
	r := ceiling - count
	if r < 0 {
		return 0
	}
	return r
}
