package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kapitbahay/internal/models"
)

const postColumns = `id, author_id, category, content, photo_url, lat, lng,
	fuzz_radius_used, status, moderation_status, duplicate_score, linked_post_id,
	expires_at, extensions_used, reaction_confirm, reaction_still_active,
	reaction_no_longer_valid, reaction_thanks, view_count, created_at, updated_at`

// CreatePost inserts a new post row.
func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AuthorID, string(p.Category), p.Content, p.PhotoURL, p.Lat, p.Lng,
		p.FuzzRadiusUsed, string(p.Status), string(p.Moderation), p.DuplicateScore, p.LinkedPostID,
		formatTime(p.ExpiresAt), p.ExtensionsUsed,
		p.Reactions.Confirm, p.Reactions.StillActive, p.Reactions.NoLongerValid, p.Reactions.Thanks,
		p.ViewCount, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// GetPost fetches a post by ID. Returns (nil, nil) when the post does not
// exist.
func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// ActivePosts returns all posts with status='active', used to rebuild the
// proximity index at startup.
func (s *Store) ActivePosts(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE status = ? ORDER BY created_at
	`, string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// TransitionPost moves a post to the given status if and only if its current
// status is one of from. The guard and the write are a single statement, so
// a concurrent transition cannot be lost or doubled. Returns whether the
// transition was applied. A non-empty modStatus is set alongside.
func (s *Store) TransitionPost(ctx context.Context, id string, to models.PostStatus, modStatus models.ModerationStatus, from ...models.PostStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition post: empty from-set")
	}
	// Every requested edge must exist in the transition table. An illegal
	// edge is a programming error, not a lost race, so it fails loudly
	// instead of returning a quiet false.
	for _, f := range from {
		if !models.CanTransition(f, to) {
			return false, fmt.Errorf("transition post: illegal edge %s -> %s", f, to)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args := []any{string(to), formatTime(time.Now())}
	set := `status = ?, updated_at = ?`
	if modStatus != "" {
		set += `, moderation_status = ?`
		args = append(args, string(modStatus))
	}
	args = append(args, id)
	for _, f := range from {
		args = append(args, string(f))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET `+set+` WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("transition post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementViewCount bumps the monotonic view counter.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// ExpiredPost identifies a post transitioned by an expiry pass.
type ExpiredPost struct {
	ID       string
	Category models.Category
}

// ExpireDue transitions every active post whose TTL has elapsed to expired
// and returns the transitioned posts. Running it again with no due rows is
// a no-op, so concurrent sweeps are safe and each post is returned by
// exactly one pass.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) ([]ExpiredPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE posts SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at <= ?
		RETURNING id, category
	`, string(models.StatusExpired), formatTime(now), string(models.StatusActive), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("expire due posts: %w", err)
	}
	defer rows.Close()

	var expired []ExpiredPost
	for rows.Next() {
		var e ExpiredPost
		var category string
		if err := rows.Scan(&e.ID, &category); err != nil {
			return nil, fmt.Errorf("scan expired post: %w", err)
		}
		e.Category = models.Category(category)
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// ArchiveCandidates returns the full rows of terminal-status posts whose
// last update is older than cutoff. The sweeper copies them into the archive
// store and then calls DeletePosts.
func (s *Store) ArchiveCandidates(ctx context.Context, cutoff time.Time) ([]models.Post, error) {
	terminal := models.TerminalStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(terminal)), ", ")
	args := make([]any, 0, len(terminal)+1)
	for _, st := range terminal {
		args = append(args, string(st))
	}
	args = append(args, formatTime(cutoff))

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE status IN (`+placeholders+`) AND updated_at < ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list archive candidates: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive candidate: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// DeletePosts hard-deletes the given rows from the live store. Only the
// archival pass may call this, after the rows are safely in the archive.
func (s *Store) DeletePosts(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete posts: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var category, status, modStatus string
	var expiresAt, createdAt, updatedAt string
	err := row.Scan(
		&p.ID, &p.AuthorID, &category, &p.Content, &p.PhotoURL, &p.Lat, &p.Lng,
		&p.FuzzRadiusUsed, &status, &modStatus, &p.DuplicateScore, &p.LinkedPostID,
		&expiresAt, &p.ExtensionsUsed,
		&p.Reactions.Confirm, &p.Reactions.StillActive, &p.Reactions.NoLongerValid, &p.Reactions.Thanks,
		&p.ViewCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = models.Category(category)
	p.Status = models.PostStatus(status)
	p.Moderation = models.ModerationStatus(modStatus)
	p.ExpiresAt = parseTime(expiresAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
