package proximity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/models"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// center is Luneta-ish Manila; offsets below are in whole meters north.
const centerLat, centerLng = 14.5995, 120.9842

func entryAt(id string, northMeters float64, cat models.Category, createdAt time.Time) Entry {
	return Entry{
		ID:        id,
		Category:  cat,
		Content:   "test post " + id,
		Lat:       centerLat + northMeters/111320.0,
		Lng:       centerLng,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(4 * time.Hour),
	}
}

func TestSearch_RadiusInclusive(t *testing.T) {
	ix := NewIndex()
	ix.Insert(entryAt("near", 100, models.CategoryStreetFood, base))
	ix.Insert(entryAt("edge", 499, models.CategoryStreetFood, base))
	ix.Insert(entryAt("far", 1500, models.CategoryStreetFood, base))

	results, total := ix.Search(Query{
		Lat: centerLat, Lng: centerLng, RadiusMeters: 500, Sort: SortNearest,
	})
	require.Equal(t, 2, total)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
	assert.Equal(t, "edge", results[1].ID)
	assert.InDelta(t, 100, results[0].DistanceMeters, 2)
	assert.InDelta(t, 499, results[1].DistanceMeters, 2)
}

func TestSearch_CategoryAndSinceFilters(t *testing.T) {
	ix := NewIndex()
	ix.Insert(entryAt("food", 50, models.CategoryStreetFood, base))
	ix.Insert(entryAt("alert", 60, models.CategorySafetyAlert, base))
	ix.Insert(entryAt("old", 70, models.CategoryStreetFood, base.Add(-48*time.Hour)))

	results, total := ix.Search(Query{
		Lat: centerLat, Lng: centerLng, RadiusMeters: 500,
		Categories: []models.Category{models.CategoryStreetFood},
		Since:      base.Add(-24 * time.Hour),
	})
	require.Equal(t, 1, total)
	assert.Equal(t, "food", results[0].ID)
}

func TestSearch_Sorts(t *testing.T) {
	ix := NewIndex()

	a := entryAt("a", 300, models.CategoryGeneral, base.Add(-3*time.Hour))
	a.Confirm = 7
	b := entryAt("b", 100, models.CategoryGeneral, base.Add(-1*time.Hour))
	b.Confirm = 2
	c := entryAt("c", 200, models.CategoryGeneral, base.Add(-2*time.Hour))
	c.Confirm = 2
	ix.Insert(a)
	ix.Insert(b)
	ix.Insert(c)

	q := Query{Lat: centerLat, Lng: centerLng, RadiusMeters: 1000}

	q.Sort = SortNearest
	results, _ := ix.Search(q)
	assert.Equal(t, []string{"b", "c", "a"}, ids(results))

	q.Sort = SortRecent
	results, _ = ix.Search(q)
	assert.Equal(t, []string{"b", "c", "a"}, ids(results))

	// Confirmed: a leads on count; b and c tie, broken by newer CreatedAt.
	q.Sort = SortConfirmed
	results, _ = ix.Search(q)
	assert.Equal(t, []string{"a", "b", "c"}, ids(results))
}

func TestSearch_Pagination(t *testing.T) {
	ix := NewIndex()
	for i := 0; i < 10; i++ {
		ix.Insert(entryAt(fmt.Sprintf("p%02d", i), float64(10*(i+1)), models.CategoryGeneral, base))
	}

	q := Query{Lat: centerLat, Lng: centerLng, RadiusMeters: 1000, Sort: SortNearest, Limit: 3, Offset: 3}
	results, total := ix.Search(q)
	assert.Equal(t, 10, total)
	assert.Equal(t, []string{"p03", "p04", "p05"}, ids(results))

	q.Offset = 50
	results, total = ix.Search(q)
	assert.Equal(t, 10, total)
	assert.Empty(t, results)
}

func TestInsert_UpsertsInPlace(t *testing.T) {
	ix := NewIndex()
	e := entryAt("x", 100, models.CategoryGeneral, base)
	ix.Insert(e)

	e.Confirm = 5
	ix.Insert(e)
	assert.Equal(t, 1, ix.Len())

	got, ok := ix.Get("x")
	require.True(t, ok)
	assert.Equal(t, 5, got.Confirm)

	// Moving across cells keeps exactly one copy.
	moved := entryAt("x", 5000, models.CategoryGeneral, base)
	ix.Insert(moved)
	assert.Equal(t, 1, ix.Len())

	_, total := ix.Search(Query{Lat: centerLat, Lng: centerLng, RadiusMeters: 500})
	assert.Zero(t, total)
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	ix := NewIndex()
	ix.Insert(entryAt("x", 100, models.CategoryGeneral, base))

	ix.Remove("does-not-exist")
	assert.Equal(t, 1, ix.Len())

	ix.Remove("x")
	ix.Remove("x")
	assert.Zero(t, ix.Len())
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
