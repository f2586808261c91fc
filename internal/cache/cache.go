// Package cache provides a read-through JSON cache over Redis. Cache
// failures fail open: the value is computed fresh and the miss is logged.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores JSON-encoded values with a TTL.
type Cache interface {
	// GetOrCompute unmarshals the cached value for key into dest, or calls
	// compute, stores its result, and unmarshals that instead.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest any, compute func() (any, error)) error
	// Invalidate drops a key.
	Invalidate(ctx context.Context, key string) error
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps the given client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest any, compute func() (any, error)) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(raw, dest); err == nil {
			return nil
		}
		// A corrupt entry is treated as a miss and overwritten below.
		log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("cache unavailable, computing fresh")
	}

	value, err := compute()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, encoded, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return json.Unmarshal(encoded, dest)
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// NoopCache computes every time. Used when Redis is not configured.
type NoopCache struct{}

var _ Cache = NoopCache{}

func (NoopCache) GetOrCompute(_ context.Context, _ string, _ time.Duration, dest any, compute func() (any, error)) error {
	value, err := compute()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, dest)
}

func (NoopCache) Invalidate(_ context.Context, _ string) error { return nil }
