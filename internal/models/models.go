// Package models defines the domain entities shared by the lifecycle engine:
// posts, reactions, reports, moderation queue items and the category catalog.
package models

import "time"

// Category identifies the kind of micro-event a post reports.
type Category string

const (
	CategoryStreetFood           Category = "street_food"
	CategoryLostFound            Category = "lost_found"
	CategorySafetyAlert          Category = "safety_alert"
	CategoryTrafficRoad          Category = "traffic_road"
	CategoryCommunityEvent       Category = "community_event"
	CategoryUtilityIssue         Category = "utility_issue"
	CategoryNoiseComplaint       Category = "noise_complaint"
	CategoryFreeStuff            Category = "free_stuff"
	CategoryBarangayAnnouncement Category = "barangay_announcement"
	CategoryGeneral              Category = "general"
)

// AllCategories returns the closed set of post categories.
func AllCategories() []Category {
	return []Category{
		CategoryStreetFood,
		CategoryLostFound,
		CategorySafetyAlert,
		CategoryTrafficRoad,
		CategoryCommunityEvent,
		CategoryUtilityIssue,
		CategoryNoiseComplaint,
		CategoryFreeStuff,
		CategoryBarangayAnnouncement,
		CategoryGeneral,
	}
}

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	StatusPendingModeration PostStatus = "pending_moderation"
	StatusActive            PostStatus = "active"
	StatusExpired           PostStatus = "expired"
	StatusAutoRemoved       PostStatus = "auto_removed"
	StatusRemovedByAuthor   PostStatus = "removed_by_author"
	StatusRemovedByMod      PostStatus = "removed_by_mod"
	StatusArchived          PostStatus = "archived"
)

// Terminal reports whether a post in this status can never return to active.
// Archived is the universal end state reached from any terminal status.
func (s PostStatus) Terminal() bool {
	switch s {
	case StatusExpired, StatusAutoRemoved, StatusRemovedByAuthor, StatusRemovedByMod, StatusArchived:
		return true
	}
	return false
}

// TerminalStatuses lists the statuses eligible for archival after the grace
// window. Archived itself is excluded: those rows already left the live store.
func TerminalStatuses() []PostStatus {
	return []PostStatus{
		StatusExpired,
		StatusAutoRemoved,
		StatusRemovedByAuthor,
		StatusRemovedByMod,
	}
}

// ModerationStatus tracks how a post cleared (or failed) moderation.
type ModerationStatus string

const (
	ModerationPending      ModerationStatus = "pending"
	ModerationAutoApproved ModerationStatus = "auto_approved"
	ModerationApproved     ModerationStatus = "approved"
	ModerationRemoved      ModerationStatus = "removed"
)

// ReactionType is one of the four reactions a user can leave on a post.
type ReactionType string

const (
	ReactionConfirm       ReactionType = "confirm"
	ReactionStillActive   ReactionType = "still_active"
	ReactionNoLongerValid ReactionType = "no_longer_valid"
	ReactionThanks        ReactionType = "thanks"
)

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionConfirm, ReactionStillActive, ReactionNoLongerValid, ReactionThanks:
		return true
	}
	return false
}

// ReactionCounts holds the per-type reaction counters of a post. Each
// (post, user) pair contributes at most 1 to exactly one counter.
type ReactionCounts struct {
	Confirm       int `json:"confirm"`
	StillActive   int `json:"still_active"`
	NoLongerValid int `json:"no_longer_valid"`
	Thanks        int `json:"thanks"`
}

// Engagement returns the positive-signal total used by the TTL extension
// guard. no_longer_valid does not count toward engagement.
func (c ReactionCounts) Engagement() int {
	return c.Confirm + c.StillActive + c.Thanks
}

// Post is a short-lived, category-tagged micro-event at a fuzzed location.
// Lat/Lng always hold the fuzzed coordinate; the true submission coordinate
// is never stored anywhere.
type Post struct {
	ID             string           `json:"id"`
	AuthorID       string           `json:"author_id"`
	Category       Category         `json:"category"`
	Content        string           `json:"content"`
	PhotoURL       string           `json:"photo_url,omitempty"`
	Lat            float64          `json:"lat"`
	Lng            float64          `json:"lng"`
	FuzzRadiusUsed float64          `json:"fuzz_radius_used"`
	Status         PostStatus       `json:"status"`
	Moderation     ModerationStatus `json:"moderation_status"`
	DuplicateScore float64          `json:"duplicate_score"`
	LinkedPostID   string           `json:"linked_post_id,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	ExtensionsUsed int              `json:"extensions_used"`
	Reactions      ReactionCounts   `json:"reactions"`
	ViewCount      int              `json:"view_count"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Reaction is a user's single active reaction to a post, keyed by
// (PostID, UserID). Re-reacting overwrites the previous type.
type Reaction struct {
	PostID    string       `json:"post_id"`
	UserID    string       `json:"user_id"`
	Type      ReactionType `json:"reaction"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReportReason categorizes a community report on a post.
type ReportReason string

const (
	ReportMisinformation ReportReason = "misinformation"
	ReportSpam           ReportReason = "spam"
	ReportHarassment     ReportReason = "harassment"
	ReportNSFW           ReportReason = "nsfw_content"
	ReportPersonalInfo   ReportReason = "personal_info_exposed"
	ReportHateSpeech     ReportReason = "hate_speech"
	ReportOffTopic       ReportReason = "off_topic"
	ReportDuplicate      ReportReason = "duplicate"
	ReportOther          ReportReason = "other"
)

// Report is a community flag on a post, unique per (PostID, ReporterID).
type Report struct {
	PostID     string       `json:"post_id"`
	ReporterID string       `json:"reporter_id"`
	Reason     ReportReason `json:"reason"`
	Details    string       `json:"details,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Role is the platform role of a user account.
type Role string

const (
	RoleResident  Role = "resident"
	RoleVendor    Role = "vendor"
	RoleModerator Role = "moderator"
	RoleOfficial  Role = "official"
	RoleAdmin     Role = "admin"
)

// CanPostAnnouncements reports whether the role may create posts in the
// authority-gated barangay_announcement category.
func (r Role) CanPostAnnouncements() bool {
	return r == RoleOfficial || r == RoleAdmin
}

// User carries the account fields the engine consumes. Trust scores are
// recomputed by an external batch process; the engine only reads them.
type User struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"display_name"`
	Role          Role       `json:"role"`
	TrustScore    float64    `json:"trust_score"`
	MuteExpiresAt *time.Time `json:"mute_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Muted reports whether the user is muted at the given instant.
func (u *User) Muted(now time.Time) bool {
	return u.MuteExpiresAt != nil && now.Before(*u.MuteExpiresAt)
}
