// Package lifecycle implements the post state machine and the submission
// pipeline: rate limiting, validation, geofuzzing, duplicate gating, trust
// routing, and the downstream index/event/notification side effects of
// every status transition.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kapitbahay/internal/duplicate"
	"kapitbahay/internal/events"
	"kapitbahay/internal/geo"
	"kapitbahay/internal/metrics"
	"kapitbahay/internal/models"
	"kapitbahay/internal/notify"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/ratelimit"
	"kapitbahay/internal/store"
	"kapitbahay/internal/tracing"
	"kapitbahay/internal/trust"
)

// MaxContentLength bounds post content in runes.
const MaxContentLength = 280

// Service drives posts through their lifecycle. All guarded mutations are
// delegated to the store so they stay transactional; the service owns the
// pre-write policy checks and the post-write side effects.
type Service struct {
	store      *store.Store
	index      *proximity.Index
	detector   *duplicate.Detector
	fuzzer     *geo.Fuzzer
	catalog    *models.Catalog
	limiter    ratelimit.Limiter
	publisher  events.Publisher
	dispatcher *notify.Dispatcher
	now        func() time.Time
}

// Options wires the service's collaborators. Store, Index, Detector, Fuzzer
// and Catalog are required; the rest default to no-ops.
type Options struct {
	Store      *store.Store
	Index      *proximity.Index
	Detector   *duplicate.Detector
	Fuzzer     *geo.Fuzzer
	Catalog    *models.Catalog
	Limiter    ratelimit.Limiter
	Publisher  events.Publisher
	Dispatcher *notify.Dispatcher
	Now        func() time.Time
}

// NewService validates the wiring and returns the lifecycle service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Index == nil || opts.Detector == nil || opts.Fuzzer == nil || opts.Catalog == nil {
		return nil, fmt.Errorf("lifecycle: store, index, detector, fuzzer and catalog are required")
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NoopLimiter{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      opts.Store,
		index:      opts.Index,
		detector:   opts.Detector,
		fuzzer:     opts.Fuzzer,
		catalog:    opts.Catalog,
		limiter:    opts.Limiter,
		publisher:  opts.Publisher,
		dispatcher: opts.Dispatcher,
		now:        opts.Now,
	}, nil
}

// SubmitInput is a new post as received from the author. Lat/Lng are the
// true coordinates; they are fuzzed before anything is stored and never
// retained.
type SubmitInput struct {
	AuthorID string
	Category models.Category
	Content  string
	PhotoURL string
	Lat      float64
	Lng      float64
}

// Submit runs the full submission pipeline and returns the created post.
// The returned post carries only the fuzzed coordinate.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (post *models.Post, err error) {
	ctx, span := tracing.LifecycleSpan(ctx, "submit", "", string(in.Category))
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	now := s.now().UTC()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if !geo.ValidCoordinate(in.Lat, in.Lng) {
		return nil, ErrInvalidCoordinate
	}
	cfg, ok := s.catalog.Lookup(in.Category)
	if !ok {
		return nil, ErrUnknownCategory
	}

	user, err := s.store.GetUser(ctx, in.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("loading author: %w", err)
	}
	if in.Category == models.CategoryBarangayAnnouncement {
		if user == nil || !user.Role.CanPostAnnouncements() {
			return nil, ErrRoleRestricted
		}
	}
	if user != nil && user.Muted(now) {
		return nil, ErrAuthorMuted
	}

	// Rate limiting fails open at the seam, not just inside the Redis
	// implementation: a broken limiter must never block submissions.
	decision, err := s.limiter.Allow(ctx, in.AuthorID, now)
	if err != nil {
		log.Warn().Err(err).Str("author_id", in.AuthorID).
			Msg("rate limiter unavailable, allowing submission")
		decision = ratelimit.Decision{Allowed: true}
	}
	if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	fuzzed, err := s.fuzzer.Fuzz(in.Lat, in.Lng, cfg.FuzzMinMeters, cfg.FuzzMaxMeters)
	if err != nil {
		return nil, fmt.Errorf("fuzzing location: %w", err)
	}
	metrics.FuzzRadiusMeters.Observe(fuzzed.RadiusUsed)

	post = &models.Post{
		ID:             uuid.NewString(),
		AuthorID:       in.AuthorID,
		Category:       in.Category,
		Content:        content,
		PhotoURL:       in.PhotoURL,
		Lat:            fuzzed.Lat,
		Lng:            fuzzed.Lng,
		FuzzRadiusUsed: fuzzed.RadiusUsed,
		ExpiresAt:      now.Add(cfg.DefaultTTL()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Duplicate gating runs on the fuzzed coordinate: the true one is
	// already gone and must never influence stored state.
	if candidates := s.detector.Score(content, fuzzed.Lat, fuzzed.Lng, in.Category, now); len(candidates) > 0 {
		top := candidates[0]
		switch {
		case top.Score >= duplicate.RejectThreshold:
			metrics.DuplicatesDetectedTotal.WithLabelValues("rejected").Inc()
			return nil, &DuplicateError{ExistingPostID: top.PostID, Score: top.Score}
		case top.Score >= duplicate.LinkThreshold:
			metrics.DuplicatesDetectedTotal.WithLabelValues("linked").Inc()
			post.DuplicateScore = top.Score
			post.LinkedPostID = top.PostID
		}
	}

	var trustScore float64
	if user != nil {
		trustScore = user.TrustScore
	}
	if trust.ModerationDecision(trustScore).AutoApprove {
		post.Status = models.StatusActive
		post.Moderation = models.ModerationAutoApproved
	} else {
		post.Status = models.StatusPendingModeration
		post.Moderation = models.ModerationPending
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	metrics.PostsSubmittedTotal.WithLabelValues(string(post.Category), string(post.Status)).Inc()

	switch post.Status {
	case models.StatusActive:
		s.activate(ctx, post)
	case models.StatusPendingModeration:
		if err := s.enqueueForReview(ctx, post); err != nil {
			log.Error().Err(err).Str("post_id", post.ID).Msg("failed to enqueue post for moderation")
		}
	}

	log.Info().
		Str("post_id", post.ID).
		Str("category", string(post.Category)).
		Str("status", string(post.Status)).
		Float64("fuzz_radius_m", post.FuzzRadiusUsed).
		Msg("post submitted")
	return post, nil
}

// activate inserts an active post into the proximity index, announces it,
// and schedules the delayed nearby-users notification.
func (s *Service) activate(ctx context.Context, post *models.Post) {
	s.index.Insert(proximity.Entry{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Category:  post.Category,
		Content:   post.Content,
		Lat:       post.Lat,
		Lng:       post.Lng,
		Confirm:   post.Reactions.Confirm,
		CreatedAt: post.CreatedAt,
		ExpiresAt: post.ExpiresAt,
	})
	s.publish(events.Event{
		Type:      events.TypePostNew,
		PostID:    post.ID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})
	if s.dispatcher != nil {
		s.dispatcher.Enqueue(ctx, notify.Job{
			PostID:   post.ID,
			Category: string(post.Category),
			Lat:      post.Lat,
			Lng:      post.Lng,
		})
	}
}

func (s *Service) enqueueForReview(ctx context.Context, post *models.Post) error {
	priority := models.PriorityDefault
	if post.Category == models.CategorySafetyAlert {
		priority = models.PrioritySafety
	}
	reason := models.ReasonLowTrustAutoQueue
	if post.LinkedPostID != "" {
		reason = models.ReasonDuplicateEscalated
	}
	return s.store.EnqueueModeration(ctx, models.ModerationQueueItem{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		Reason:    reason,
		Priority:  priority,
		CreatedAt: s.now().UTC(),
	})
}

// Delete removes an active post at its author's request.
func (s *Service) Delete(ctx context.Context, postID, userID string) error {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("loading post: %w", err)
	}
	if post == nil {
		return store.ErrPostNotActive
	}
	if post.AuthorID != userID {
		return ErrNotAuthor
	}

	ok, err := s.store.TransitionPost(ctx, postID, models.StatusRemovedByAuthor, "", models.StatusActive)
	if err != nil {
		return fmt.Errorf("removing post: %w", err)
	}
	if !ok {
		return ErrConflict
	}

	s.index.Remove(postID)
	s.publish(events.Event{
		Type:      events.TypePostExpired,
		PostID:    postID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})
	return nil
}

// autoRemoveReportThreshold is the distinct-reporter count that removes a
// post without moderator involvement.
const autoRemoveReportThreshold = 3

// Report records a community flag. The third distinct reporter auto-removes
// the post and opens a moderation queue item for after-the-fact review.
func (s *Service) Report(ctx context.Context, r models.Report) error {
	post, err := s.store.GetPost(ctx, r.PostID)
	if err != nil {
		return fmt.Errorf("loading post: %w", err)
	}
	if post == nil || post.Status != models.StatusActive {
		return store.ErrPostNotActive
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	count, err := s.store.AddReport(ctx, r)
	if err != nil {
		return err
	}
	metrics.ReportsTotal.Inc()

	if count < autoRemoveReportThreshold {
		return nil
	}

	ok, err := s.store.TransitionPost(ctx, r.PostID, models.StatusAutoRemoved, models.ModerationRemoved, models.StatusActive)
	if err != nil {
		return fmt.Errorf("auto-removing post: %w", err)
	}
	if !ok {
		// Already left active, nothing further to do.
		return nil
	}
	metrics.PostsAutoRemovedTotal.Inc()

	s.index.Remove(r.PostID)
	s.publish(events.Event{
		Type:      events.TypePostExpired,
		PostID:    r.PostID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})

	err = s.store.EnqueueModeration(ctx, models.ModerationQueueItem{
		ID:        uuid.NewString(),
		PostID:    r.PostID,
		Reason:    models.ReasonCommunityFlagged,
		Priority:  models.PriorityFlagged,
		CreatedAt: s.now().UTC(),
	})
	if err != nil && err != store.ErrOpenItemExists {
		log.Error().Err(err).Str("post_id", r.PostID).Msg("failed to queue flagged post for review")
	}

	log.Warn().Str("post_id", r.PostID).Int("reports", count).Msg("post auto-removed by community reports")
	return nil
}

// Extend grants the author-driven TTL extension if every guard holds.
func (s *Service) Extend(ctx context.Context, postID, userID string) (store.ExtendOutcome, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.ExtendOutcome{}, fmt.Errorf("loading post: %w", err)
	}
	if post == nil {
		return store.ExtendOutcome{}, store.ErrPostNotActive
	}
	cfg, ok := s.catalog.Lookup(post.Category)
	if !ok {
		return store.ExtendOutcome{}, ErrUnknownCategory
	}

	out, err := s.store.ExtendPost(ctx, postID, userID, cfg, s.now().UTC())
	if err != nil {
		return store.ExtendOutcome{}, err
	}
	metrics.ExtensionsGrantedTotal.WithLabelValues("author").Inc()

	if entry, found := s.index.Get(postID); found {
		entry.ExpiresAt = out.NewExpiresAt
		s.index.Insert(entry)
	}
	s.publish(events.Event{
		Type:      events.TypePostUpdated,
		PostID:    postID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})
	return out, nil
}

// RecordView counts a feed impression toward the extension engagement guard.
func (s *Service) RecordView(ctx context.Context, postID string) error {
	return s.store.IncrementViewCount(ctx, postID)
}

// PublishVendorLocation announces a vendor's current fuzzed position to the
// realtime feed without creating a post.
func (s *Service) PublishVendorLocation(ctx context.Context, vendorID string, lat, lng float64) error {
	if !geo.ValidCoordinate(lat, lng) {
		return ErrInvalidCoordinate
	}
	user, err := s.store.GetUser(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("loading vendor: %w", err)
	}
	if user == nil || user.Role != models.RoleVendor {
		return ErrRoleRestricted
	}

	s.publish(events.Event{
		Type:      events.TypeVendorLocation,
		PostID:    vendorID,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func (s *Service) publish(ev events.Event) {
	metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
	s.publisher.Publish(ev)
}
