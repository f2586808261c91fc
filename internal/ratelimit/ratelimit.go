// Package ratelimit enforces per-author posting limits using a Redis-backed
// sliding window. Redis unavailability fails open: posting proceeds and the
// outage is logged, so the limiter can never take the feed down with it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Posting limits for the sliding window.
const (
	DefaultLimit  = 5
	DefaultWindow = 30 * time.Minute
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether an author may post right now.
type Limiter interface {
	Allow(ctx context.Context, authorID string, now time.Time) (Decision, error)
}

// RedisLimiter implements a sliding window over a Redis sorted set per
// author, scored by unix nanoseconds.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter returns a limiter using the given client. Zero limit or
// window fall back to the defaults.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{client: client, limit: limit, window: window}
}

var _ Limiter = (*RedisLimiter)(nil)

// Allow records the attempt and reports whether it is within the window
// limit. If Redis is unreachable the attempt is allowed.
func (l *RedisLimiter) Allow(ctx context.Context, authorID string, now time.Time) (Decision, error) {
	key := fmt.Sprintf("ratelimit:post:%s", authorID)
	windowStart := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("author_id", authorID).
			Msg("rate limiter unavailable, failing open")
		return Decision{Allowed: true, Remaining: l.limit}, nil
	}

	used := int(card.Val())
	if used >= l.limit {
		retryAfter := l.window
		if entries := oldest.Val(); len(entries) > 0 {
			oldestAt := time.Unix(0, int64(entries[0].Score))
			retryAfter = oldestAt.Add(l.window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	record := l.client.TxPipeline()
	record.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	record.Expire(ctx, key, l.window)
	if _, err := record.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("author_id", authorID).
			Msg("rate limiter record failed, failing open")
	}

	return Decision{Allowed: true, Remaining: l.limit - used - 1}, nil
}

// NoopLimiter allows everything. Used when Redis is not configured.
type NoopLimiter struct{}

var _ Limiter = NoopLimiter{}

// Allow always permits the attempt.
func (NoopLimiter) Allow(_ context.Context, _ string, _ time.Time) (Decision, error) {
	return Decision{Allowed: true, Remaining: DefaultLimit}, nil
}
