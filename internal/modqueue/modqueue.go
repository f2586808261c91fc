// Package modqueue implements moderator review of queued posts: approving
// them into the live feed, removing them, escalating, and the user-level
// actions, each leaving one immutable audit-log entry.
package modqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kapitbahay/internal/events"
	"kapitbahay/internal/metrics"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/store"
)

// muteDuration is how long mute_user_24h silences the author.
const muteDuration = 24 * time.Hour

// banDuration is the effective mute applied by ban_user. Account deletion
// is handled out of band; the engine only stops the posting.
const banDuration = 100 * 365 * 24 * time.Hour

// ErrUnknownAction rejects a resolution with an action outside the closed set.
var ErrUnknownAction = errors.New("unknown moderation action")

// Service resolves moderation queue items.
type Service struct {
	store     *store.Store
	index     *proximity.Index
	publisher events.Publisher
	now       func() time.Time
}

// NewService wires the moderation service. A nil publisher drops events.
func NewService(st *store.Store, index *proximity.Index, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{store: st, index: index, publisher: publisher, now: time.Now}
}

// Enqueue opens a queue item for a post. At most one item per post may be
// open at a time.
func (s *Service) Enqueue(ctx context.Context, postID string, reason models.QueueReason, priority int) error {
	return s.store.EnqueueModeration(ctx, models.ModerationQueueItem{
		ID:        uuid.NewString(),
		PostID:    postID,
		Reason:    reason,
		Priority:  priority,
		CreatedAt: s.now().UTC(),
	})
}

// List returns open items in review order: most urgent priority first,
// oldest first within a priority.
func (s *Service) List(ctx context.Context, status models.QueueStatus, limit int) ([]models.ModerationQueueItem, error) {
	return s.store.ListQueue(ctx, status, limit)
}

// Counts reports queue depth by status.
func (s *Service) Counts(ctx context.Context) (map[models.QueueStatus]int, error) {
	return s.store.QueueCounts(ctx)
}

// Resolve applies a moderator's decision. Every action except escalate
// closes the item exactly once; every action appends one audit-log entry.
// Resolving an already-closed item returns store.ErrQueueItemClosed.
func (s *Service) Resolve(ctx context.Context, itemID string, action models.ModAction, note, moderatorID string) error {
	if !action.Valid() {
		return ErrUnknownAction
	}
	now := s.now().UTC()

	// Escalation re-opens the same item at top priority; the post is
	// untouched and no audit entry is written until a closing action lands.
	if action == models.ActionEscalate {
		item, err := s.store.EscalateQueueItem(ctx, itemID)
		if err != nil {
			return err
		}
		metrics.ModerationActionsTotal.WithLabelValues(string(action)).Inc()
		log.Info().
			Str("item_id", item.ID).
			Str("post_id", item.PostID).
			Str("moderator_id", moderatorID).
			Msg("moderation queue item escalated")
		return nil
	}

	item, err := s.store.ResolveQueueItem(ctx, itemID, action, note, moderatorID, now)
	if err != nil {
		return err
	}

	post, err := s.store.GetPost(ctx, item.PostID)
	if err != nil {
		return fmt.Errorf("loading post: %w", err)
	}

	switch action {
	case models.ActionApprove:
		if err := s.approve(ctx, post); err != nil {
			return err
		}
	case models.ActionReject, models.ActionRemove:
		s.remove(ctx, post)
	case models.ActionMuteUser:
		if post != nil {
			if err := s.store.MuteUser(ctx, post.AuthorID, now.Add(muteDuration)); err != nil {
				return fmt.Errorf("muting user: %w", err)
			}
			s.remove(ctx, post)
		}
	case models.ActionBanUser:
		if post != nil {
			if err := s.store.MuteUser(ctx, post.AuthorID, now.Add(banDuration)); err != nil {
				return fmt.Errorf("banning user: %w", err)
			}
			s.remove(ctx, post)
		}
	case models.ActionWarnUser:
		// Notification only; the post stays as it is.
	}

	entry := models.ModerationLogEntry{
		ID:           uuid.NewString(),
		ModeratorID:  moderatorID,
		TargetPostID: item.PostID,
		Action:       action,
		Note:         note,
		QueueItemID:  item.ID,
		CreatedAt:    now,
	}
	if post != nil {
		entry.TargetUserID = post.AuthorID
	}
	if err := s.store.AppendModerationLog(ctx, entry); err != nil {
		return fmt.Errorf("writing moderation log: %w", err)
	}
	metrics.ModerationActionsTotal.WithLabelValues(string(action)).Inc()

	log.Info().
		Str("item_id", itemID).
		Str("post_id", item.PostID).
		Str("action", string(action)).
		Str("moderator_id", moderatorID).
		Msg("moderation queue item resolved")
	return nil
}

// approve activates a pending post: it enters the proximity index and is
// announced to the feed.
func (s *Service) approve(ctx context.Context, post *models.Post) error {
	if post == nil {
		return nil
	}
	ok, err := s.store.TransitionPost(ctx, post.ID, models.StatusActive, models.ModerationApproved, models.StatusPendingModeration)
	if err != nil {
		return fmt.Errorf("activating post: %w", err)
	}
	if !ok {
		return nil
	}
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
	s.publisher.Publish(events.Event{
		Type:      events.TypePostNew,
		PostID:    post.ID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})
	return nil
}

// remove takes a post out of the feed as removed_by_mod. Posts already in a
// terminal status are left alone.
func (s *Service) remove(ctx context.Context, post *models.Post) {
	if post == nil {
		return
	}
	ok, err := s.store.TransitionPost(ctx, post.ID, models.StatusRemovedByMod, models.ModerationRemoved,
		models.StatusPendingModeration, models.StatusActive)
	if err != nil {
		log.Error().Err(err).Str("post_id", post.ID).Msg("failed to remove post")
		return
	}
	if !ok {
		return
	}
	s.index.Remove(post.ID)
	s.publisher.Publish(events.Event{
		Type:      events.TypePostExpired,
		PostID:    post.ID,
		Category:  string(post.Category),
		Timestamp: s.now().UTC(),
	})
}

// Log returns the most recent audit-log entries.
func (s *Service) Log(ctx context.Context, limit int) ([]models.ModerationLogEntry, error) {
	return s.store.ListModerationLog(ctx, limit)
}
