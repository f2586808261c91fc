// Package duplicate scores incoming posts against recent nearby posts of
// the same category, blending textual and spatial similarity into one
// composite score so redundant reports can be linked or rejected.
package duplicate

import (
	"sort"
	"strings"
	"time"

	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

// Submission-time thresholds applied by the lifecycle engine.
const (
	// RejectThreshold is the composite score at which a submission is
	// rejected outright in favor of the existing post.
	RejectThreshold = 0.75

	// LinkThreshold is the composite score at which a submission is created
	// but flagged as a possible duplicate of the existing post.
	LinkThreshold = 0.5
)

// Policy bounds the candidate window and the similarity weighting. The
// window values are tunables, not part of the scoring contract.
type Policy struct {
	RadiusMeters  float64
	Recency       time.Duration
	TextWeight    float64
	SpatialWeight float64
}

// DefaultPolicy returns the shipped tunables: near-identical text within
// 150m in the last 3 hours should dominate.
func DefaultPolicy() Policy {
	return Policy{
		RadiusMeters:  150,
		Recency:       3 * time.Hour,
		TextWeight:    0.6,
		SpatialWeight: 0.4,
	}
}

// Candidate is an existing post with its composite similarity score.
type Candidate struct {
	PostID string
	Score  float64
}

// Scorer computes the composite similarity between a new post's text and an
// existing nearby post. Implementations must be pure so the weighting is a
// testable unit rather than policy baked into a query.
type Scorer interface {
	Score(newContent, existingContent string, distanceMeters float64) float64
}

// Detector evaluates new submissions against the proximity index.
type Detector struct {
	index  *proximity.Index
	policy Policy
	scorer Scorer
}

// NewDetector creates a detector with the given policy and scorer. A nil
// scorer selects the default trigram scorer.
func NewDetector(index *proximity.Index, policy Policy, scorer Scorer) *Detector {
	if scorer == nil {
		scorer = TrigramScorer{
			TextWeight:    policy.TextWeight,
			SpatialWeight: policy.SpatialWeight,
			RadiusMeters:  policy.RadiusMeters,
		}
	}
	return &Detector{index: index, policy: policy, scorer: scorer}
}

// Score returns candidates within the policy window ranked by composite
// score, highest first. An empty window yields no candidates.
func (d *Detector) Score(content string, lat, lng float64, category models.Category, now time.Time) []Candidate {
	nearby, _ := d.index.Search(proximity.Query{
		Lat:          lat,
		Lng:          lng,
		RadiusMeters: d.policy.RadiusMeters,
		Categories:   []models.Category{category},
		Since:        now.Add(-d.policy.Recency),
		Sort:         proximity.SortNearest,
	})

	candidates := make([]Candidate, 0, len(nearby))
	for _, r := range nearby {
		score := d.scorer.Score(content, r.Content, r.DistanceMeters)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{PostID: r.ID, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].PostID < candidates[j].PostID
	})
	return candidates
}

// TrigramScorer is the default composite scorer: Jaccard similarity over
// character trigrams of the normalized text, blended with a linear spatial
// decay over the window radius.
type TrigramScorer struct {
	TextWeight    float64
	SpatialWeight float64
	RadiusMeters  float64
}

// Score implements Scorer.
func (s TrigramScorer) Score(newContent, existingContent string, distanceMeters float64) float64 {
	text := trigramSimilarity(normalize(newContent), normalize(existingContent))

	spatial := 0.0
	if s.RadiusMeters > 0 && distanceMeters <= s.RadiusMeters {
		spatial = 1 - distanceMeters/s.RadiusMeters
	}

	return s.TextWeight*text + s.SpatialWeight*spatial
}

// normalize lowercases, trims, and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// trigramSimilarity returns the Jaccard coefficient of the two strings'
// character trigram sets. Strings shorter than a trigram fall back to
// exact-match after normalization.
func trigramSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		if a == b {
			return 1
		}
		return 0
	}

	intersection := 0
	for g := range ta {
		if tb[g] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	set := make(map[string]bool, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = true
	}
	return set
}
