package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kapitbahay/internal/models"
)

// confirmExtendWindow and confirmExtendStep govern the trusted-confirm TTL
// extension: a new confirm within the last two hours of TTL adds one hour.
const (
	confirmExtendWindow = 2 * time.Hour
	confirmExtendStep   = time.Hour
)

// autoRemoveThreshold is the distinct-user count of no_longer_valid
// reactions (or reports) at which a post is auto-removed.
const autoRemoveThreshold = 3

// counterColumns whitelists the per-reaction counter columns.
var counterColumns = map[models.ReactionType]string{
	models.ReactionConfirm:       "reaction_confirm",
	models.ReactionStillActive:   "reaction_still_active",
	models.ReactionNoLongerValid: "reaction_no_longer_valid",
	models.ReactionThanks:        "reaction_thanks",
}

// ReactionInput carries one reaction application. AllowConfirmExtend is the
// caller's trust-gate verdict for the reacting user; the extension itself
// still only fires on a transition into confirm within the TTL window.
type ReactionInput struct {
	PostID             string
	UserID             string
	Type               models.ReactionType
	AllowConfirmExtend bool
	Now                time.Time
}

// ReactionOutcome reports the post state after the upsert.
type ReactionOutcome struct {
	Counts      models.ReactionCounts
	Previous    models.ReactionType // empty when this was the user's first reaction
	TTLExtended bool
	AutoRemoved bool
	ExpiresAt   time.Time
}

// ApplyReaction upserts the (post, user) reaction and maintains the post's
// counters, TTL and status inside one transaction. The active-status guard
// is part of the same transaction as the writes: a post expiring or being
// removed concurrently causes ErrPostNotActive, never a write to a dead
// post. Each user nets at most one counter per post at any time.
func (s *Store) ApplyReaction(ctx context.Context, in ReactionInput) (ReactionOutcome, error) {
	if !in.Type.Valid() {
		return ReactionOutcome{}, fmt.Errorf("apply reaction: unknown type %q", in.Type)
	}

	var out ReactionOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var authorID, status, expiresAtStr string
		err := tx.QueryRowContext(ctx,
			`SELECT author_id, status, expires_at FROM posts WHERE id = ?`, in.PostID,
		).Scan(&authorID, &status, &expiresAtStr)
		if err == sql.ErrNoRows {
			return ErrPostNotActive
		}
		if err != nil {
			return fmt.Errorf("load post: %w", err)
		}
		if models.PostStatus(status) != models.StatusActive {
			return ErrPostNotActive
		}
		if authorID == in.UserID {
			return ErrSelfReaction
		}
		out.ExpiresAt = parseTime(expiresAtStr)

		var prev string
		err = tx.QueryRowContext(ctx,
			`SELECT reaction FROM reactions WHERE post_id = ? AND user_id = ?`,
			in.PostID, in.UserID,
		).Scan(&prev)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("load previous reaction: %w", err)
		}
		out.Previous = models.ReactionType(prev)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reactions (post_id, user_id, reaction, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(post_id, user_id) DO UPDATE SET
				reaction   = excluded.reaction,
				created_at = excluded.created_at
		`, in.PostID, in.UserID, string(in.Type), formatTime(in.Now))
		if err != nil {
			return fmt.Errorf("upsert reaction: %w", err)
		}

		// Shift the counters only when the type actually changed, so the
		// user's net contribution stays exactly one.
		if out.Previous != in.Type {
			set := counterColumns[in.Type] + " = " + counterColumns[in.Type] + " + 1"
			if out.Previous != "" {
				prevCol := counterColumns[out.Previous]
				set += ", " + prevCol + " = MAX(" + prevCol + " - 1, 0)"
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE posts SET `+set+`, updated_at = ? WHERE id = ?`,
				formatTime(in.Now), in.PostID,
			); err != nil {
				return fmt.Errorf("update counters: %w", err)
			}
		}

		// Trusted confirm near expiry extends the TTL by one hour. Only a
		// transition into confirm triggers the check; a repeated confirm
		// from the same user never re-extends. This extension does not
		// consume the author's extension budget.
		if in.Type == models.ReactionConfirm && out.Previous != models.ReactionConfirm && in.AllowConfirmExtend {
			if out.ExpiresAt.Sub(in.Now) < confirmExtendWindow {
				newExpiry := out.ExpiresAt.Add(confirmExtendStep)
				if _, err := tx.ExecContext(ctx,
					`UPDATE posts SET expires_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
					formatTime(newExpiry), formatTime(in.Now), in.PostID, string(models.StatusActive),
				); err != nil {
					return fmt.Errorf("extend ttl on confirm: %w", err)
				}
				out.ExpiresAt = newExpiry
				out.TTLExtended = true
			}
		}

		// The third distinct no_longer_valid auto-removes the post.
		if in.Type == models.ReactionNoLongerValid {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM reactions WHERE post_id = ? AND reaction = ?`,
				in.PostID, string(models.ReactionNoLongerValid),
			).Scan(&count); err != nil {
				return fmt.Errorf("count no_longer_valid: %w", err)
			}
			if count >= autoRemoveThreshold {
				if _, err := tx.ExecContext(ctx,
					`UPDATE posts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
					string(models.StatusAutoRemoved), formatTime(in.Now), in.PostID, string(models.StatusActive),
				); err != nil {
					return fmt.Errorf("auto-remove post: %w", err)
				}
				out.AutoRemoved = true
			}
		}

		return tx.QueryRowContext(ctx, `
			SELECT reaction_confirm, reaction_still_active, reaction_no_longer_valid, reaction_thanks
			FROM posts WHERE id = ?
		`, in.PostID).Scan(
			&out.Counts.Confirm, &out.Counts.StillActive,
			&out.Counts.NoLongerValid, &out.Counts.Thanks,
		)
	})
	if err != nil {
		return ReactionOutcome{}, err
	}
	return out, nil
}

// ReactionFor returns the user's current reaction on a post, or empty.
func (s *Store) ReactionFor(ctx context.Context, postID, userID string) (models.ReactionType, error) {
	var reaction string
	err := s.db.QueryRowContext(ctx,
		`SELECT reaction FROM reactions WHERE post_id = ? AND user_id = ?`,
		postID, userID,
	).Scan(&reaction)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get reaction: %w", err)
	}
	return models.ReactionType(reaction), nil
}

// ExtendOutcome reports a successful author-driven TTL extension.
type ExtendOutcome struct {
	NewExpiresAt        time.Time
	ExtensionsRemaining int
}

// ExtendPost applies the author-driven TTL extension with all guards checked
// inside the transaction that writes the result, so two concurrent requests
// cannot both consume the last extension. cfg is the immutable category
// config for the post's category.
func (s *Store) ExtendPost(ctx context.Context, postID, authorID string, cfg models.CategoryConfig, now time.Time) (ExtendOutcome, error) {
	var out ExtendOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var postAuthor, status, expiresAtStr string
		var extensionsUsed, confirm, stillActive, thanks, viewCount int
		err := tx.QueryRowContext(ctx, `
			SELECT author_id, status, expires_at, extensions_used,
				reaction_confirm, reaction_still_active, reaction_thanks, view_count
			FROM posts WHERE id = ?
		`, postID).Scan(
			&postAuthor, &status, &expiresAtStr, &extensionsUsed,
			&confirm, &stillActive, &thanks, &viewCount,
		)
		if err == sql.ErrNoRows {
			return ErrPostNotActive
		}
		if err != nil {
			return fmt.Errorf("load post: %w", err)
		}
		if postAuthor != authorID {
			return ErrNotAuthor
		}
		if models.PostStatus(status) != models.StatusActive {
			return ErrPostNotActive
		}

		if !cfg.Extendable() || extensionsUsed >= cfg.MaxExtensions {
			return ErrNoExtensions
		}

		expiresAt := parseTime(expiresAtStr)
		if expiresAt.Sub(now) > 30*time.Minute {
			return ErrTooEarly
		}

		if confirm+stillActive+thanks == 0 && viewCount < 5 {
			return ErrLowEngagement
		}

		out.NewExpiresAt = expiresAt.Add(cfg.ExtensionStep())
		out.ExtensionsRemaining = cfg.MaxExtensions - extensionsUsed - 1

		_, err = tx.ExecContext(ctx, `
			UPDATE posts SET expires_at = ?, extensions_used = extensions_used + 1, updated_at = ?
			WHERE id = ?
		`, formatTime(out.NewExpiresAt), formatTime(now), postID)
		if err != nil {
			return fmt.Errorf("extend post: %w", err)
		}
		return nil
	})
	if err != nil {
		return ExtendOutcome{}, err
	}
	return out, nil
}

// AddReport records a community report and returns the post's new report
// count. A second report from the same user fails with ErrAlreadyReported.
func (s *Store) AddReport(ctx context.Context, r models.Report) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM reports WHERE post_id = ? AND reporter_id = ?`,
			r.PostID, r.ReporterID,
		).Scan(&exists)
		if err == nil {
			return ErrAlreadyReported
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check existing report: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (post_id, reporter_id, reason, details, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, r.PostID, r.ReporterID, string(r.Reason), r.Details, formatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		return tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reports WHERE post_id = ?`, r.PostID,
		).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
