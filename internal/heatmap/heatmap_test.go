package heatmap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

const (
	centerLat = 14.5995
	centerLng = 120.9842
)

func seedIndex(entries ...proximity.Entry) *proximity.Index {
	ix := proximity.NewIndex()
	for _, e := range entries {
		ix.Insert(e)
	}
	return ix
}

func entryAt(id string, cat models.Category, lat, lng float64) proximity.Entry {
	return proximity.Entry{
		ID: id, Category: cat, Lat: lat, Lng: lng,
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestAroundGroupsNearbyPosts(t *testing.T) {
	// Two posts a few meters apart, one ~500m north.
	ix := seedIndex(
		entryAt("a", models.CategoryStreetFood, centerLat, centerLng),
		entryAt("b", models.CategoryFreeStuff, centerLat+0.00005, centerLng),
		entryAt("c", models.CategoryStreetFood, centerLat+0.0045, centerLng),
	)
	svc := NewService(ix, nil)

	cells, err := svc.Around(context.Background(), centerLat, centerLng, 1000, ResolutionLow)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	// Densest cell first.
	assert.Equal(t, 2, cells[0].Count)
	assert.Equal(t, 1, cells[0].Categories[models.CategoryStreetFood])
	assert.Equal(t, 1, cells[0].Categories[models.CategoryFreeStuff])
	assert.Equal(t, 1, cells[1].Count)
}

func TestAroundExcludesOutOfRadiusPosts(t *testing.T) {
	ix := seedIndex(
		entryAt("near", models.CategoryStreetFood, centerLat, centerLng),
		entryAt("far", models.CategoryStreetFood, centerLat+0.05, centerLng),
	)
	svc := NewService(ix, nil)

	cells, err := svc.Around(context.Background(), centerLat, centerLng, 500, ResolutionMedium)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 1, cells[0].Count)
}

func TestAroundRejectsInvalidCenter(t *testing.T) {
	svc := NewService(proximity.NewIndex(), nil)
	_, err := svc.Around(context.Background(), 91, 0, 500, ResolutionLow)
	assert.Error(t, err)
}

func TestAroundEmptyIndex(t *testing.T) {
	svc := NewService(proximity.NewIndex(), nil)
	cells, err := svc.Around(context.Background(), centerLat, centerLng, 500, ResolutionHigh)
	require.NoError(t, err)
	assert.Empty(t, cells)
}
