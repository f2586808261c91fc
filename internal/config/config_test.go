package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "18920", cfg.Port)
	assert.Equal(t, 5, cfg.RateLimitPosts)
	assert.Equal(t, 30*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 60*time.Second, cfg.ExpiryInterval)
	assert.Equal(t, "0 3 * * *", cfg.ArchiveSchedule)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RATE_LIMIT_POSTS", "10")
	t.Setenv("EXPIRY_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 10, cfg.RateLimitPosts)
	assert.Equal(t, 15*time.Second, cfg.ExpiryInterval)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_POSTS", "many")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_POSTS", "5")
	t.Setenv("EXPIRY_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)
}
