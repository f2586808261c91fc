package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	d, err := NoopLimiter{}.Allow(context.Background(), "author-1", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	// Nothing listens here; every command errors, so the check must
	// allow the attempt rather than block posting on an outage.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLimiter(client, 5, 30*time.Minute)
	d, err := l.Allow(context.Background(), "author-1", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestNewRedisLimiterDefaults(t *testing.T) {
	l := NewRedisLimiter(nil, 0, 0)
	assert.Equal(t, DefaultLimit, l.limit)
	assert.Equal(t, DefaultWindow, l.window)
}
