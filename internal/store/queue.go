package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kapitbahay/internal/models"
)

// EnqueueModeration inserts a queue item for a post. At most one open item
// may exist per post; a second enqueue while one is open fails with
// ErrOpenItemExists (also enforced by a partial unique index).
func (s *Store) EnqueueModeration(ctx context.Context, item models.ModerationQueueItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM moderation_queue
			WHERE post_id = ? AND status IN (?, ?)
		`, item.PostID, string(models.QueuePending), string(models.QueueInReview)).Scan(&exists)
		if err == nil {
			return ErrOpenItemExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check open queue item: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO moderation_queue (id, post_id, reason, priority, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, item.ID, item.PostID, string(item.Reason), item.Priority,
			string(models.QueuePending), formatTime(item.CreatedAt))
		if err != nil {
			return fmt.Errorf("enqueue moderation item: %w", err)
		}
		return nil
	})
}

const queueColumns = `id, post_id, reason, priority, status, resolved_action,
	resolved_note, assigned_to, created_at, resolved_at`

// GetQueueItem fetches a queue item by ID. Returns (nil, nil) when missing.
func (s *Store) GetQueueItem(ctx context.Context, id string) (*models.ModerationQueueItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM moderation_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// ListQueue returns queue items in the given status, most urgent first
// (priority ascending, then age ascending).
func (s *Store) ListQueue(ctx context.Context, status models.QueueStatus, limit int) ([]models.ModerationQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM moderation_queue
		WHERE status = ?
		ORDER BY priority ASC, created_at ASC
		LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []models.ModerationQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// QueueCounts returns the number of items per status.
func (s *Store) QueueCounts(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM moderation_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.QueueStatus(status)] = n
	}
	return counts, rows.Err()
}

// ResolveQueueItem closes an open queue item with the moderator's decision.
// A closed item cannot be resolved again: the status guard and the write
// are one statement. Returns the resolved item.
func (s *Store) ResolveQueueItem(ctx context.Context, id string, action models.ModAction, note, moderatorID string, now time.Time) (*models.ModerationQueueItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE moderation_queue SET
			status = ?, resolved_action = ?, resolved_note = ?, assigned_to = ?, resolved_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(models.QueueResolved), string(action), note, moderatorID, formatTime(now),
		id, string(models.QueuePending), string(models.QueueInReview))
	if err != nil {
		return nil, fmt.Errorf("resolve queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrQueueItemClosed
	}
	return s.GetQueueItem(ctx, id)
}

// EscalateQueueItem re-opens an item at top priority. This is the single
// re-entrant edge in the queue-item lifecycle: the item stays open, so the
// one-open-item-per-post invariant holds without compensation.
func (s *Store) EscalateQueueItem(ctx context.Context, id string) (*models.ModerationQueueItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE moderation_queue SET status = ?, priority = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(models.QueuePending), models.PriorityEscalated,
		id, string(models.QueuePending), string(models.QueueInReview))
	if err != nil {
		return nil, fmt.Errorf("escalate queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrQueueItemClosed
	}
	return s.GetQueueItem(ctx, id)
}

// AppendModerationLog writes one immutable audit entry.
func (s *Store) AppendModerationLog(ctx context.Context, entry models.ModerationLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_log
			(id, moderator_id, target_user_id, target_post_id, action, note, queue_item_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ModeratorID, entry.TargetUserID, entry.TargetPostID,
		string(entry.Action), entry.Note, entry.QueueItemID, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("append moderation log: %w", err)
	}
	return nil
}

// ListModerationLog returns the newest audit entries, most recent first.
func (s *Store) ListModerationLog(ctx context.Context, limit int) ([]models.ModerationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, moderator_id, target_user_id, target_post_id, action, note, queue_item_id, created_at
		FROM moderation_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	var entries []models.ModerationLogEntry
	for rows.Next() {
		var e models.ModerationLogEntry
		var action, createdAt string
		if err := rows.Scan(&e.ID, &e.ModeratorID, &e.TargetUserID, &e.TargetPostID,
			&action, &e.Note, &e.QueueItemID, &createdAt); err != nil {
			return nil, err
		}
		e.Action = models.ModAction(action)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanQueueItem(row rowScanner) (*models.ModerationQueueItem, error) {
	var item models.ModerationQueueItem
	var reason, status, action, createdAt string
	var resolvedAt sql.NullString
	err := row.Scan(&item.ID, &item.PostID, &reason, &item.Priority, &status,
		&action, &item.ResolvedNote, &item.AssignedTo, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	item.Reason = models.QueueReason(reason)
	item.Status = models.QueueStatus(status)
	item.ResolvedAction = models.ModAction(action)
	item.CreatedAt = parseTime(createdAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		item.ResolvedAt = &t
	}
	return &item, nil
}
