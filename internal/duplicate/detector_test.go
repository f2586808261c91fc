package duplicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

const lat, lng = 14.5995, 120.9842

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func seedIndex(entries ...proximity.Entry) *proximity.Index {
	ix := proximity.NewIndex()
	for _, e := range entries {
		ix.Insert(e)
	}
	return ix
}

func nearbyPost(id, content string, northMeters float64, age time.Duration) proximity.Entry {
	return proximity.Entry{
		ID:        id,
		Category:  models.CategoryStreetFood,
		Content:   content,
		Lat:       lat + northMeters/111320.0,
		Lng:       lng,
		CreatedAt: now.Add(-age),
		ExpiresAt: now.Add(4 * time.Hour),
	}
}

func TestScore_IdenticalTextVeryCloseDominates(t *testing.T) {
	ix := seedIndex(nearbyPost("existing", "fishballs at the corner", 10, 30*time.Minute))
	d := NewDetector(ix, DefaultPolicy(), nil)

	candidates := d.Score("fishballs at the corner", lat, lng, models.CategoryStreetFood, now)
	require.Len(t, candidates, 1)
	assert.Equal(t, "existing", candidates[0].PostID)
	assert.GreaterOrEqual(t, candidates[0].Score, RejectThreshold)
}

func TestScore_UnrelatedTextStaysBelowLinkThreshold(t *testing.T) {
	ix := seedIndex(nearbyPost("existing", "lost black cat near the plaza", 10, 30*time.Minute))
	d := NewDetector(ix, DefaultPolicy(), nil)

	candidates := d.Score("fresh taho vendor by the gate", lat, lng, models.CategoryStreetFood, now)
	if len(candidates) > 0 {
		assert.Less(t, candidates[0].Score, LinkThreshold)
	}
}

func TestScore_OutsideSpatialWindow(t *testing.T) {
	ix := seedIndex(nearbyPost("faraway", "fishballs at the corner", 400, 30*time.Minute))
	d := NewDetector(ix, DefaultPolicy(), nil)

	candidates := d.Score("fishballs at the corner", lat, lng, models.CategoryStreetFood, now)
	assert.Empty(t, candidates)
}

func TestScore_OutsideRecencyWindow(t *testing.T) {
	ix := seedIndex(nearbyPost("stale", "fishballs at the corner", 10, 5*time.Hour))
	d := NewDetector(ix, DefaultPolicy(), nil)

	candidates := d.Score("fishballs at the corner", lat, lng, models.CategoryStreetFood, now)
	assert.Empty(t, candidates)
}

func TestScore_DifferentCategoryIgnored(t *testing.T) {
	e := nearbyPost("other-cat", "fishballs at the corner", 10, 30*time.Minute)
	e.Category = models.CategoryLostFound
	d := NewDetector(seedIndex(e), DefaultPolicy(), nil)

	candidates := d.Score("fishballs at the corner", lat, lng, models.CategoryStreetFood, now)
	assert.Empty(t, candidates)
}

func TestScore_RankedHighestFirst(t *testing.T) {
	ix := seedIndex(
		nearbyPost("close-match", "fishballs at the corner", 20, 30*time.Minute),
		nearbyPost("weak-match", "fishball cart spotted somewhere along the road", 120, 30*time.Minute),
	)
	d := NewDetector(ix, DefaultPolicy(), nil)

	candidates := d.Score("fishballs at the corner", lat, lng, models.CategoryStreetFood, now)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "close-match", candidates[0].PostID)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i].Score, candidates[i-1].Score)
	}
}

func TestTrigramScorer_Weighting(t *testing.T) {
	s := TrigramScorer{TextWeight: 0.6, SpatialWeight: 0.4, RadiusMeters: 150}

	// Identical text at zero distance scores the full weight sum.
	assert.InDelta(t, 1.0, s.Score("fishballs at the corner", "fishballs at the corner", 0), 1e-9)

	// Identical text at the window edge keeps only the text weight.
	assert.InDelta(t, 0.6, s.Score("fishballs at the corner", "fishballs at the corner", 150), 1e-9)

	// Case and whitespace differences do not matter.
	assert.InDelta(t, 1.0, s.Score("Fishballs  AT the corner", "fishballs at the corner", 0), 1e-9)
}
