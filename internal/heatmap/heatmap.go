// Package heatmap aggregates active posts into coarse density cells for map
// overlays. Aggregates are advisory and served through a short-TTL
// read-through cache; a cache outage just recomputes from the index.
package heatmap

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"kapitbahay/internal/cache"
	"kapitbahay/internal/geo"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

// Resolution selects the heatmap cell size.
type Resolution string

const (
	ResolutionLow    Resolution = "low"
	ResolutionMedium Resolution = "medium"
	ResolutionHigh   Resolution = "high"
)

// cacheTTL bounds how stale a served aggregate can be.
const cacheTTL = 5 * time.Minute

// cellMeters maps resolutions to approximate cell edges.
var cellMeters = map[Resolution]float64{
	ResolutionLow:    100,
	ResolutionMedium: 50,
	ResolutionHigh:   25,
}

// Cell is one aggregated bucket: its center and how many active posts fall
// inside, broken down by category.
type Cell struct {
	Lat        float64                 `json:"lat"`
	Lng        float64                 `json:"lng"`
	Count      int                     `json:"count"`
	Categories map[models.Category]int `json:"categories"`
}

// Service computes heatmap aggregates from the proximity index.
type Service struct {
	index *proximity.Index
	cache cache.Cache
}

// NewService wires the heatmap service. A nil cache computes every call.
func NewService(index *proximity.Index, c cache.Cache) *Service {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Service{index: index, cache: c}
}

// Around returns density cells for active posts within radiusMeters of the
// center, densest first. Unknown resolutions fall back to low.
func (s *Service) Around(ctx context.Context, lat, lng, radiusMeters float64, res Resolution) ([]Cell, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, geo.ErrInvalidCoordinate
	}
	if _, ok := cellMeters[res]; !ok {
		res = ResolutionLow
	}

	// Centers within ~10m share a cache entry; the aggregate is too coarse
	// for finer keying to matter.
	key := fmt.Sprintf("heatmap:%s:%.2f:%.2f:%.0f", res, lat, lng, radiusMeters)
	var cells []Cell
	err := s.cache.GetOrCompute(ctx, key, cacheTTL, &cells, func() (any, error) {
		return s.compute(lat, lng, radiusMeters, res), nil
	})
	if err != nil {
		return nil, err
	}
	return cells, nil
}

func (s *Service) compute(lat, lng, radiusMeters float64, res Resolution) []Cell {
	edge := cellMeters[res]
	latStep := edge / 111320.0
	lngStep := latStep / math.Cos(lat*math.Pi/180)

	type cellKey struct{ latCell, lngCell int }
	buckets := make(map[cellKey]*Cell)

	s.index.Range(func(e proximity.Entry) bool {
		if geo.Distance(lat, lng, e.Lat, e.Lng) > radiusMeters {
			return true
		}
		key := cellKey{
			latCell: int(math.Floor(e.Lat / latStep)),
			lngCell: int(math.Floor(e.Lng / lngStep)),
		}
		c, ok := buckets[key]
		if !ok {
			c = &Cell{
				Lat:        (float64(key.latCell) + 0.5) * latStep,
				Lng:        (float64(key.lngCell) + 0.5) * lngStep,
				Categories: make(map[models.Category]int),
			}
			buckets[key] = c
		}
		c.Count++
		c.Categories[e.Category]++
		return true
	})

	cells := make([]Cell, 0, len(buckets))
	for _, c := range buckets {
		cells = append(cells, *c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		if cells[i].Lat != cells[j].Lat {
			return cells[i].Lat < cells[j].Lat
		}
		return cells[i].Lng < cells[j].Lng
	})
	return cells
}
