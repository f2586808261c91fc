package models

import "time"

// QueueReason records why a post landed in the moderation queue.
type QueueReason string

const (
	ReasonLowTrustAutoQueue  QueueReason = "low_trust_auto_queue"
	ReasonCommunityFlagged   QueueReason = "community_flagged_3plus"
	ReasonVendorApplication  QueueReason = "vendor_application"
	ReasonDuplicateEscalated QueueReason = "possible_duplicate"
)

// QueueStatus is the review state of a moderation queue item.
type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueInReview QueueStatus = "in_review"
	QueueResolved QueueStatus = "resolved"
)

// Open reports whether the item still awaits a decision.
func (s QueueStatus) Open() bool {
	return s == QueuePending || s == QueueInReview
}

// ModAction is a moderator decision on a queue item.
type ModAction string

const (
	ActionApprove  ModAction = "approve"
	ActionReject   ModAction = "reject"
	ActionRemove   ModAction = "remove"
	ActionEscalate ModAction = "escalate"
	ActionMuteUser ModAction = "mute_user_24h"
	ActionWarnUser ModAction = "warn_user"
	ActionBanUser  ModAction = "ban_user"
)

// Valid reports whether a is a known moderation action.
func (a ModAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRemove, ActionEscalate, ActionMuteUser, ActionWarnUser, ActionBanUser:
		return true
	}
	return false
}

// Queue priorities: lower is more urgent and reviewed first.
const (
	PriorityEscalated = 1
	PrioritySafety    = 1
	PriorityFlagged   = 2
	PriorityDefault   = 5
)

// ModerationQueueItem is a post awaiting a human decision. At most one item
// per post may be open (pending or in_review) at a time; escalate keeps the
// same item open at higher priority rather than closing it.
type ModerationQueueItem struct {
	ID             string      `json:"id"`
	PostID         string      `json:"post_id"`
	Reason         QueueReason `json:"reason"`
	Priority       int         `json:"priority"`
	Status         QueueStatus `json:"status"`
	ResolvedAction ModAction   `json:"resolved_action,omitempty"`
	ResolvedNote   string      `json:"resolved_note,omitempty"`
	AssignedTo     string      `json:"assigned_to,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// ModerationLogEntry is one immutable line of the moderation audit trail.
type ModerationLogEntry struct {
	ID           string    `json:"id"`
	ModeratorID  string    `json:"moderator_id"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	TargetPostID string    `json:"target_post_id,omitempty"`
	Action       ModAction `json:"action"`
	Note         string    `json:"note,omitempty"`
	QueueItemID  string    `json:"queue_item_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
