// Package trust maps a user's trust score onto moderation and behavioral
// privileges. Scores themselves are recomputed by an external batch process;
// this package only derives decisions from the current value.
package trust

// Behavioral thresholds. Both fall exactly on tier boundaries.
const (
	// ModerationThreshold is the minimum score for auto-approved posts.
	// Below it, submissions route to the moderation queue.
	ModerationThreshold = 25

	// ConfirmExtendThreshold is the minimum score for a user's "confirm"
	// reaction to extend a post's TTL.
	ConfirmExtendThreshold = 50
)

// Tier is an ordered trust classification derived from the numeric score.
type Tier string

const (
	TierNewcomer             Tier = "newcomer"
	TierNeighbor             Tier = "neighbor"
	TierActiveNeighbor       Tier = "active_neighbor"
	TierTrustedNeighbor      Tier = "trusted_neighbor"
	TierCommunityPillar      Tier = "community_pillar"
	TierNeighborhoodGuardian Tier = "neighborhood_guardian"
)

// TierFor returns the tier for a trust score. The mapping is pure and
// deterministic; the score itself can rise or fall over time.
func TierFor(score float64) Tier {
	switch {
	case score < 10:
		return TierNewcomer
	case score < 25:
		return TierNeighbor
	case score < 50:
		return TierActiveNeighbor
	case score < 75:
		return TierTrustedNeighbor
	case score < 90:
		return TierCommunityPillar
	default:
		return TierNeighborhoodGuardian
	}
}

// Decision is the auto-moderation routing for a submission.
type Decision struct {
	AutoApprove bool
}

// ModerationDecision returns whether a post from a user with the given trust
// score is auto-approved or queued for review.
func ModerationDecision(score float64) Decision {
	return Decision{AutoApprove: score >= ModerationThreshold}
}

// CanExtendViaConfirm reports whether a confirm reaction from a user with the
// given score is eligible to extend the post's TTL.
func CanExtendViaConfirm(score float64) bool {
	return score >= ConfirmExtendThreshold
}
