// Package sweeper runs the two background passes of the feed: the expiry
// pass that retires active posts whose TTL elapsed, and the daily archival
// pass that moves long-terminal posts into cold storage and hard-deletes
// them from the live store. Archival is the only path allowed to delete.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"kapitbahay/internal/archive"
	"kapitbahay/internal/events"
	"kapitbahay/internal/metrics"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/store"
	"kapitbahay/internal/tracing"
)

// Defaults for the background passes.
const (
	DefaultExpiryInterval = 60 * time.Second
	DefaultArchiveSpec    = "0 3 * * *" // daily at 03:00
	ArchiveGrace          = 24 * time.Hour
)

// Sweeper owns the periodic expiry and archival work.
type Sweeper struct {
	store     *store.Store
	archive   *archive.Store
	index     *proximity.Index
	publisher events.Publisher

	expiryInterval time.Duration
	archiveSpec    string
	now            func() time.Time
}

// Options configures the sweeper. Zero values select the defaults; a nil
// publisher drops events.
type Options struct {
	Store          *store.Store
	Archive        *archive.Store
	Index          *proximity.Index
	Publisher      events.Publisher
	ExpiryInterval time.Duration
	ArchiveSpec    string
	Now            func() time.Time
}

// New builds a sweeper.
func New(opts Options) *Sweeper {
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.ExpiryInterval <= 0 {
		opts.ExpiryInterval = DefaultExpiryInterval
	}
	if opts.ArchiveSpec == "" {
		opts.ArchiveSpec = DefaultArchiveSpec
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		store:          opts.Store,
		archive:        opts.Archive,
		index:          opts.Index,
		publisher:      opts.Publisher,
		expiryInterval: opts.ExpiryInterval,
		archiveSpec:    opts.ArchiveSpec,
		now:            opts.Now,
	}
}

// Run drives both passes until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(s.expiryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil {
					metrics.SweepErrorsTotal.Inc()
					log.Error().Err(err).Msg("expiry sweep failed")
				}
			}
		}
	})

	g.Go(func() error {
		c := cron.New()
		_, err := c.AddFunc(s.archiveSpec, func() {
			if _, err := s.SweepArchive(ctx); err != nil {
				log.Error().Err(err).Msg("archival sweep failed")
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling archival sweep: %w", err)
		}
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return ctx.Err()
	})

	log.Info().
		Dur("expiry_interval", s.expiryInterval).
		Str("archive_schedule", s.archiveSpec).
		Msg("sweeper started")
	return g.Wait()
}

// SweepExpired retires every active post whose TTL has elapsed. Each post
// expires in exactly one pass, so the removal notification fires once per
// transition even with overlapping sweeps.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := tracing.SweepSpan(ctx, "expiry")
	defer span.End()

	start := s.now()
	expired, err := s.store.ExpireDue(ctx, start.UTC())
	if err != nil {
		tracing.EndWithError(span, err)
		return 0, fmt.Errorf("expiring posts: %w", err)
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	for _, p := range expired {
		s.index.Remove(p.ID)
		metrics.PostsExpiredTotal.WithLabelValues(string(p.Category)).Inc()
		s.publisher.Publish(events.Event{
			Type:      events.TypePostExpired,
			PostID:    p.ID,
			Category:  string(p.Category),
			Timestamp: start.UTC(),
		})
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("expired posts swept")
	}
	return len(expired), nil
}

// SweepArchive moves terminal posts older than the grace window into cold
// storage and deletes them from the live store.
func (s *Sweeper) SweepArchive(ctx context.Context) (int, error) {
	ctx, span := tracing.SweepSpan(ctx, "archive")
	defer span.End()

	cutoff := s.now().UTC().Add(-ArchiveGrace)
	candidates, err := s.store.ArchiveCandidates(ctx, cutoff)
	if err != nil {
		tracing.EndWithError(span, err)
		return 0, fmt.Errorf("listing archive candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		candidates[i].Status = models.StatusArchived
		ids[i] = candidates[i].ID
	}

	// Cold storage is written before the live rows go away; a crash in
	// between leaves duplicates, which re-archive harmlessly next pass.
	if err := s.archive.Put(candidates); err != nil {
		return 0, fmt.Errorf("writing archive: %w", err)
	}
	n, err := s.store.DeletePosts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting archived posts: %w", err)
	}
	metrics.PostsArchivedTotal.Add(float64(n))

	log.Info().Int("count", n).Msg("terminal posts archived")
	return n, nil
}
