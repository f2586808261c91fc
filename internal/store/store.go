// Package store provides the SQLite-backed live datastore for posts,
// reactions, reports, moderation queue items and users. Every guarded
// mutation (reaction accounting, TTL extension, status transitions) runs
// inside a single transaction so concurrent requests cannot race a guard
// check against the write it protects.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "modernc.org/sqlite"
)

// Sentinel errors for the policy taxonomy. Callers branch on these with
// errors.Is; anything else is an infrastructure failure.
var (
	// ErrPostNotActive: the guarded mutation found the post missing or in
	// a non-active status. Surfaced as a retryable conflict, never applied.
	ErrPostNotActive = errors.New("store: post not active")

	// ErrSelfReaction: authors may not react to their own posts.
	ErrSelfReaction = errors.New("store: author cannot react to own post")

	// ErrAlreadyReported: one report per (post, reporter).
	ErrAlreadyReported = errors.New("store: post already reported by this user")

	// ErrNotAuthor: the guarded mutation is reserved for the post's author.
	ErrNotAuthor = errors.New("store: requester is not the post author")

	// ErrNoExtensions: extension budget exhausted or category disallows it.
	ErrNoExtensions = errors.New("store: no extensions remaining")

	// ErrTooEarly: extensions open only in the last 30 minutes of TTL.
	ErrTooEarly = errors.New("store: too early to extend")

	// ErrLowEngagement: posts with no engagement cannot be extended.
	ErrLowEngagement = errors.New("store: insufficient engagement to extend")

	// ErrQueueItemClosed: the moderation queue item was already resolved.
	ErrQueueItemClosed = errors.New("store: moderation queue item not open")

	// ErrOpenItemExists: at most one open queue item per post.
	ErrOpenItemExists = errors.New("store: post already has an open queue item")
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the live database at path and applies the schema.
// The driver is instrumented with otelsql so store operations show up as
// spans under the process tracer.
func Open(ctx context.Context, path string) (*Store, error) {
	// SQLite allows a single writer; WAL keeps readers unblocked and the
	// busy timeout makes concurrent guarded writes queue instead of fail.
	// _txlock=immediate takes the write lock at BEGIN, so a guarded
	// transaction never reads, loses a mid-transaction lock upgrade to a
	// concurrent committer, and surfaces SQLITE_BUSY_SNAPSHOT: the second
	// writer instead waits its turn and re-evaluates the guard against
	// committed state. The pragmas ride the DSN so every pooled connection
	// gets them.
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Timestamps are stored as RFC3339Nano TEXT.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id                        TEXT PRIMARY KEY,
	author_id                 TEXT NOT NULL,
	category                  TEXT NOT NULL,
	content                   TEXT NOT NULL,
	photo_url                 TEXT NOT NULL DEFAULT '',
	lat                       REAL NOT NULL,
	lng                       REAL NOT NULL,
	fuzz_radius_used          REAL NOT NULL DEFAULT 0,
	status                    TEXT NOT NULL,
	moderation_status         TEXT NOT NULL,
	duplicate_score           REAL NOT NULL DEFAULT 0,
	linked_post_id            TEXT NOT NULL DEFAULT '',
	expires_at                TEXT NOT NULL,
	extensions_used           INTEGER NOT NULL DEFAULT 0,
	reaction_confirm          INTEGER NOT NULL DEFAULT 0,
	reaction_still_active     INTEGER NOT NULL DEFAULT 0,
	reaction_no_longer_valid  INTEGER NOT NULL DEFAULT 0,
	reaction_thanks           INTEGER NOT NULL DEFAULT 0,
	view_count                INTEGER NOT NULL DEFAULT 0,
	created_at                TEXT NOT NULL,
	updated_at                TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_status_expires ON posts(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_posts_status_updated ON posts(status, updated_at);

CREATE TABLE IF NOT EXISTS reactions (
	post_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	reaction   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS reports (
	post_id     TEXT NOT NULL,
	reporter_id TEXT NOT NULL,
	reason      TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	PRIMARY KEY (post_id, reporter_id)
);

CREATE TABLE IF NOT EXISTS moderation_queue (
	id              TEXT PRIMARY KEY,
	post_id         TEXT NOT NULL,
	reason          TEXT NOT NULL,
	priority        INTEGER NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	resolved_action TEXT NOT NULL DEFAULT '',
	resolved_note   TEXT NOT NULL DEFAULT '',
	assigned_to     TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	resolved_at     TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_modqueue_open_post
	ON moderation_queue(post_id) WHERE status IN ('pending', 'in_review');

CREATE TABLE IF NOT EXISTS moderation_log (
	id             TEXT PRIMARY KEY,
	moderator_id   TEXT NOT NULL,
	target_user_id TEXT NOT NULL DEFAULT '',
	target_post_id TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	note           TEXT NOT NULL DEFAULT '',
	queue_item_id  TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL DEFAULT 'resident',
	trust_score     REAL NOT NULL DEFAULT 0,
	mute_expires_at TEXT,
	created_at      TEXT NOT NULL
);
`
