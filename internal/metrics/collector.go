package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge
// metrics. Nil functions are skipped.
type StatsSource struct {
	IndexedPosts    func() int
	QueueDepth      func() map[string]int
	EventSubscribers func() int
}

// StartCollector launches a goroutine that periodically updates gauge
// metrics. It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.IndexedPosts != nil {
		IndexedPostsTotal.Set(float64(src.IndexedPosts()))
	}
	if src.QueueDepth != nil {
		for status, count := range src.QueueDepth() {
			ModerationQueueDepth.WithLabelValues(status).Set(float64(count))
		}
	}
	if src.EventSubscribers != nil {
		EventSubscribers.Set(float64(src.EventSubscribers()))
	}
}
