package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kapitbahay/internal/archive"
	"kapitbahay/internal/cache"
	"kapitbahay/internal/config"
	"kapitbahay/internal/duplicate"
	"kapitbahay/internal/events"
	"kapitbahay/internal/geo"
	"kapitbahay/internal/handlers"
	"kapitbahay/internal/heatmap"
	"kapitbahay/internal/lifecycle"
	"kapitbahay/internal/metrics"
	"kapitbahay/internal/models"
	"kapitbahay/internal/modqueue"
	"kapitbahay/internal/notify"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/ratelimit"
	"kapitbahay/internal/reactions"
	"kapitbahay/internal/routing"
	"kapitbahay/internal/search"
	"kapitbahay/internal/store"
	"kapitbahay/internal/sweeper"
	"kapitbahay/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Kapitbahay feed engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	liveStore, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer liveStore.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Live store opened")

	coldStore, err := archive.Open(archive.Options{Path: cfg.ArchivePath})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ArchivePath).Msg("Failed to open archive")
	}
	defer coldStore.Close()

	// Redis backs the rate limiter and heatmap cache. Both fail open, so a
	// missing REDIS_ADDR just runs without them.
	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	var readCache cache.Cache = cache.NoopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitPosts, cfg.RateLimitWindow)
		readCache = cache.NewRedisCache(redisClient)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Redis connected")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, rate limiting and caching disabled")
	}

	// Rebuild the proximity index from the posts that survived the restart.
	index := proximity.NewIndex()
	active, err := liveStore.ActivePosts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load active posts")
	}
	for _, p := range active {
		index.Insert(proximity.Entry{
			ID:        p.ID,
			AuthorID:  p.AuthorID,
			Category:  p.Category,
			Content:   p.Content,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Confirm:   p.Reactions.Confirm,
			CreatedAt: p.CreatedAt,
			ExpiresAt: p.ExpiresAt,
		})
	}
	log.Info().Int("active_posts", index.Len()).Msg("Proximity index rebuilt")

	hub := events.NewHub()
	defer hub.Close()

	catalog := models.DefaultCatalog()
	detector := duplicate.NewDetector(index, duplicate.DefaultPolicy(), nil)

	// Nearby notifications go out over the event stream after the dispatch
	// delay, but only if the post is still live by then.
	dispatcher := notify.NewDispatcher(notify.NewEventSender(hub),
		func(ctx context.Context, postID string) (bool, error) {
			p, err := liveStore.GetPost(ctx, postID)
			if err != nil {
				return false, err
			}
			return p != nil && p.Status == models.StatusActive, nil
		}, notify.DefaultDelay)
	defer dispatcher.Close()

	lifecycleSvc, err := lifecycle.NewService(lifecycle.Options{
		Store:      liveStore,
		Index:      index,
		Detector:   detector,
		Fuzzer:     geo.NewFuzzer(),
		Catalog:    catalog,
		Limiter:    limiter,
		Publisher:  hub,
		Dispatcher: dispatcher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build lifecycle service")
	}
	aggregator := reactions.NewAggregator(liveStore, index, hub)
	queueSvc := modqueue.NewService(liveStore, index, hub)
	heatmapSvc := heatmap.NewService(index, readCache)
	searchSvc := search.NewService(index)
	log.Info().Msg("Lifecycle services initialized")

	metrics.StartCollector(ctx, metrics.StatsSource{
		IndexedPosts:     index.Len,
		EventSubscribers: hub.SubscriberCount,
		QueueDepth: func() map[string]int {
			counts, err := liveStore.QueueCounts(ctx)
			if err != nil {
				return nil
			}
			out := make(map[string]int, len(counts))
			for status, n := range counts {
				out[string(status)] = n
			}
			return out
		},
	}, cfg.MetricsInterval)

	sw := sweeper.New(sweeper.Options{
		Store:          liveStore,
		Archive:        coldStore,
		Index:          index,
		Publisher:      hub,
		ExpiryInterval: cfg.ExpiryInterval,
		ArchiveSpec:    cfg.ArchiveSchedule,
	})
	go func() {
		if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Sweeper stopped unexpectedly")
		}
	}()

	h := handlers.NewHandler(lifecycleSvc, aggregator, queueSvc, heatmapSvc, searchSvc, index, liveStore)
	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Hub:      hub,
		Logger:   log.Logger,
	})

	srv := &http.Server{Addr: "0.0.0.0:" + cfg.Port, Handler: handler}
	go func() {
		log.Info().Str("address", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}
}
