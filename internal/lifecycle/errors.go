package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// Validation and policy rejections. All are returned before any side effect
// so a rejected submission leaves no partial state.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrEmptyContent      = errors.New("content is empty")
	ErrContentTooLong    = errors.New("content exceeds maximum length")
	ErrUnknownCategory   = errors.New("unknown or inactive category")
	ErrRoleRestricted    = errors.New("category restricted to authority roles")
	ErrAuthorMuted       = errors.New("author is muted")
	ErrNotAuthor         = errors.New("requester is not the post author")
	ErrConflict          = errors.New("post changed concurrently, retry")
)

// RateLimitError rejects a submission that exceeded the posting window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// DuplicateError rejects a submission that scored at or above the reject
// threshold against an existing post. The caller should confirm the
// existing post instead of creating a new one.
type DuplicateError struct {
	ExistingPostID string
	Score          float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of post %s (score %.2f), confirm it instead", e.ExistingPostID, e.Score)
}
