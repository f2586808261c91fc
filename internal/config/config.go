// Package config loads the server configuration from the environment. A
// .env file is honored in development; real deployments set variables
// directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the immutable server configuration, loaded once at startup.
type Config struct {
	Port        string
	DBPath      string
	ArchivePath string
	RedisAddr   string

	RateLimitPosts  int
	RateLimitWindow time.Duration

	ExpiryInterval  time.Duration
	ArchiveSchedule string

	MetricsInterval time.Duration
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	cfg := Config{
		Port:            getEnv("PORT", "18920"),
		DBPath:          getEnv("KAPITBAHAY_DB_PATH", "kapitbahay.db"),
		ArchivePath:     getEnv("KAPITBAHAY_ARCHIVE_PATH", "kapitbahay-archive.db"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RateLimitPosts:  5,
		RateLimitWindow: 30 * time.Minute,
		ExpiryInterval:  60 * time.Second,
		ArchiveSchedule: getEnv("ARCHIVE_SCHEDULE", "0 3 * * *"),
		MetricsInterval: 30 * time.Second,
	}

	var err error
	if cfg.RateLimitPosts, err = getIntEnv("RATE_LIMIT_POSTS", cfg.RateLimitPosts); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = getDurationEnv("RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.ExpiryInterval, err = getDurationEnv("EXPIRY_INTERVAL", cfg.ExpiryInterval); err != nil {
		return Config{}, err
	}
	if cfg.MetricsInterval, err = getDurationEnv("METRICS_INTERVAL", cfg.MetricsInterval); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
