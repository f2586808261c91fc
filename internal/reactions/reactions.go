// Package reactions applies user reactions to posts and propagates their
// side effects: counter upserts, trust-gated TTL extension on confirm, and
// community auto-removal on the no_longer_valid threshold.
package reactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"kapitbahay/internal/events"
	"kapitbahay/internal/metrics"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/store"
	"kapitbahay/internal/trust"
)

// ErrInvalidReaction rejects an unknown reaction type before any write.
var ErrInvalidReaction = errors.New("invalid reaction type")

// Aggregator coordinates the transactional reaction upsert with the
// proximity index and the realtime feed.
type Aggregator struct {
	store     *store.Store
	index     *proximity.Index
	publisher events.Publisher
	now       func() time.Time
}

// NewAggregator wires the aggregator. A nil publisher drops events.
func NewAggregator(st *store.Store, index *proximity.Index, publisher events.Publisher) *Aggregator {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Aggregator{store: st, index: index, publisher: publisher, now: time.Now}
}

// Apply upserts the user's reaction and returns the updated counters. Each
// user contributes to at most one counter per post; switching reactions
// moves the contribution. The guard checks and counter writes happen in one
// store transaction, so a post expiring mid-flight rejects the reaction
// rather than mutating a dead row.
func (a *Aggregator) Apply(ctx context.Context, postID, userID string, rt models.ReactionType) (store.ReactionOutcome, error) {
	if !rt.Valid() {
		return store.ReactionOutcome{}, ErrInvalidReaction
	}

	score, err := a.store.TrustScore(ctx, userID)
	if err != nil {
		return store.ReactionOutcome{}, fmt.Errorf("loading trust score: %w", err)
	}

	now := a.now().UTC()
	out, err := a.store.ApplyReaction(ctx, store.ReactionInput{
		PostID:             postID,
		UserID:             userID,
		Type:               rt,
		AllowConfirmExtend: trust.CanExtendViaConfirm(score),
		Now:                now,
	})
	if err != nil {
		return store.ReactionOutcome{}, err
	}
	metrics.ReactionsTotal.WithLabelValues(string(rt)).Inc()

	if out.AutoRemoved {
		metrics.PostsAutoRemovedTotal.Inc()
		a.index.Remove(postID)
		a.publisher.Publish(events.Event{
			Type:      events.TypePostExpired,
			PostID:    postID,
			Timestamp: now,
		})
		log.Warn().Str("post_id", postID).Msg("post auto-removed by no_longer_valid reactions")
		return out, nil
	}

	if out.TTLExtended {
		metrics.ExtensionsGrantedTotal.WithLabelValues("confirm").Inc()
	}
	if entry, found := a.index.Get(postID); found {
		entry.Confirm = out.Counts.Confirm
		entry.ExpiresAt = out.ExpiresAt
		a.index.Insert(entry)
	}
	a.publisher.Publish(events.Event{
		Type:      events.TypePostUpdated,
		PostID:    postID,
		Timestamp: now,
	})
	return out, nil
}
