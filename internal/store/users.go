package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kapitbahay/internal/models"
)

// UpsertUser inserts or updates a user row.
func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	var muteExpires any
	if u.MuteExpiresAt != nil {
		muteExpires = formatTime(*u.MuteExpiresAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, role, trust_score, mute_expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name    = excluded.display_name,
			role            = excluded.role,
			trust_score     = excluded.trust_score,
			mute_expires_at = excluded.mute_expires_at
	`, u.ID, u.DisplayName, string(u.Role), u.TrustScore, muteExpires, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser fetches a user by ID. Returns (nil, nil) when missing.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var role, createdAt string
	var muteExpires sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, trust_score, mute_expires_at, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &role, &u.TrustScore, &muteExpires, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.Role(role)
	u.CreatedAt = parseTime(createdAt)
	if muteExpires.Valid {
		t := parseTime(muteExpires.String)
		u.MuteExpiresAt = &t
	}
	return &u, nil
}

// MuteUser sets the user's mute expiry. Muted users cannot post until it
// passes.
func (s *Store) MuteUser(ctx context.Context, id string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET mute_expires_at = ? WHERE id = ?`, formatTime(until), id)
	if err != nil {
		return fmt.Errorf("mute user: %w", err)
	}
	return nil
}

// TrustScore returns the user's current trust score, zero for unknown users.
func (s *Store) TrustScore(ctx context.Context, userID string) (float64, error) {
	var score float64
	err := s.db.QueryRowContext(ctx,
		`SELECT trust_score FROM users WHERE id = ?`, userID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get trust score: %w", err)
	}
	return score, nil
}
