package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const (
	centerLat = 14.5995
	centerLng = 120.9842
)

func entry(id, content string, lat, lng float64) proximity.Entry {
	return proximity.Entry{
		ID:        id,
		AuthorID:  "author-" + id,
		Category:  models.CategoryStreetFood,
		Content:   content,
		Lat:       lat,
		Lng:       lng,
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(4 * time.Hour),
	}
}

func TestSearchRanksByRelevanceThenDistance(t *testing.T) {
	ix := proximity.NewIndex()
	// ~0.001 degrees latitude is ~111m.
	ix.Insert(entry("far-strong", "taho taho taho", centerLat+0.005, centerLng))
	ix.Insert(entry("near-weak", "fresh taho and banana cue here", centerLat+0.001, centerLng))
	ix.Insert(entry("near-strong", "taho taho", centerLat+0.001, centerLng))
	ix.Insert(entry("unrelated", "lost tabby cat near the plaza", centerLat, centerLng))

	svc := NewService(ix)
	results, err := svc.Search("taho", centerLat, centerLng, 2000)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "taho taho", results[0].Content)
	assert.Equal(t, "far-strong", results[1].ID)
	assert.Equal(t, "near-weak", results[2].ID)
	assert.Greater(t, results[0].Relevance, results[2].Relevance)
	assert.LessOrEqual(t, results[0].DistanceMeters, 2000.0)
}

func TestSearchRequiresEveryTerm(t *testing.T) {
	ix := proximity.NewIndex()
	ix.Insert(entry("both", "banana cue stand by the court", centerLat, centerLng))
	ix.Insert(entry("one", "banana bread for sale", centerLat, centerLng))

	svc := NewService(ix)
	results, err := svc.Search("banana cue", centerLat, centerLng, 2000)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "both", results[0].ID)
}

func TestSearchRadiusFilter(t *testing.T) {
	ix := proximity.NewIndex()
	ix.Insert(entry("inside", "fishballs at the corner", centerLat+0.001, centerLng))
	// ~0.05 degrees is ~5.5km, outside the 2km cap.
	ix.Insert(entry("outside", "fishballs at the corner", centerLat+0.05, centerLng))

	svc := NewService(ix)
	results, err := svc.Search("fishballs", centerLat, centerLng, 0) // clamps to max
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "inside", results[0].ID)
}

func TestSearchValidation(t *testing.T) {
	svc := NewService(proximity.NewIndex())

	_, err := svc.Search("x", centerLat, centerLng, 1000)
	assert.ErrorIs(t, err, ErrQueryLength)

	_, err = svc.Search("taho", 91, centerLng, 1000)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestSearchCapsResultCount(t *testing.T) {
	ix := proximity.NewIndex()
	for i := 0; i < DefaultLimit+5; i++ {
		ix.Insert(entry(string(rune('a'+i)), "isaw grilling tonight", centerLat, centerLng))
	}

	svc := NewService(ix)
	results, err := svc.Search("isaw", centerLat, centerLng, 2000)
	require.NoError(t, err)
	assert.Len(t, results, DefaultLimit)
}
