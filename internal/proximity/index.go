// Package proximity provides the in-memory spatial index that answers
// "what active posts lie within radius R of point P". Posts are bucketed
// into a fixed lat/lng grid; a query scans only the cells overlapping the
// search circle's bounding box and ranks survivors by haversine distance.
//
// The index is a projection of the live store: it is rebuilt from active
// posts at startup and mutated alongside every lifecycle transition.
package proximity

import (
	"math"
	"sort"
	"sync"
	"time"

	"kapitbahay/internal/geo"
	"kapitbahay/internal/models"
)

// DefaultCellDegrees is the grid cell edge in degrees, roughly 550m of
// latitude. Sized so a typical 1km query touches a handful of cells.
const DefaultCellDegrees = 0.005

// metersPerDegreeLat is the approximate surface distance of one degree of
// latitude, used only to bound the cell scan, never for ranking.
const metersPerDegreeLat = 111320.0

// Entry is the indexed projection of an active post.
type Entry struct {
	ID        string
	AuthorID  string
	Category  models.Category
	Content   string
	Lat       float64
	Lng       float64
	Confirm   int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Result is an entry plus its distance from the query center.
type Result struct {
	Entry
	DistanceMeters float64
}

// Sort selects the ranking of query results.
type Sort string

const (
	SortNearest   Sort = "nearest"
	SortRecent    Sort = "recent"
	SortConfirmed Sort = "confirmed"
)

// Query describes a spatial feed lookup. RadiusMeters is inclusive. A nil
// Categories slice matches all categories. Since filters on CreatedAt.
type Query struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	Categories   []models.Category
	Since        time.Time
	Sort         Sort
	Limit        int
	Offset       int
}

type cellKey struct {
	latCell int32
	lngCell int32
}

// Index is a grid-bucketed spatial index safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	cells    map[cellKey]map[string]*Entry
	cellOf   map[string]cellKey
	cellSize float64
}

// NewIndex creates an empty index with the default cell size.
func NewIndex() *Index {
	return &Index{
		cells:    make(map[cellKey]map[string]*Entry),
		cellOf:   make(map[string]cellKey),
		cellSize: DefaultCellDegrees,
	}
}

func (ix *Index) keyFor(lat, lng float64) cellKey {
	return cellKey{
		latCell: int32(math.Floor(lat / ix.cellSize)),
		lngCell: int32(math.Floor(lng / ix.cellSize)),
	}
}

// Insert adds or replaces an entry. Re-inserting an already-indexed ID
// updates it in place, including a move to a different cell.
func (ix *Index) Insert(e Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.cellOf[e.ID]; ok {
		delete(ix.cells[prev], e.ID)
		if len(ix.cells[prev]) == 0 {
			delete(ix.cells, prev)
		}
	}

	key := ix.keyFor(e.Lat, e.Lng)
	cell, ok := ix.cells[key]
	if !ok {
		cell = make(map[string]*Entry)
		ix.cells[key] = cell
	}
	entry := e
	cell[e.ID] = &entry
	ix.cellOf[e.ID] = key
}

// Remove drops an entry. Removing an unknown ID is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key, ok := ix.cellOf[id]
	if !ok {
		return
	}
	delete(ix.cells[key], id)
	if len(ix.cells[key]) == 0 {
		delete(ix.cells, key)
	}
	delete(ix.cellOf, id)
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.cellOf)
}

// Get returns a copy of the indexed entry, if present.
func (ix *Index) Get(id string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	key, ok := ix.cellOf[id]
	if !ok {
		return Entry{}, false
	}
	e, ok := ix.cells[key][id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Search runs a spatial query and returns the requested page plus the total
// number of matches before pagination.
func (ix *Index) Search(q Query) ([]Result, int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var catSet map[models.Category]bool
	if len(q.Categories) > 0 {
		catSet = make(map[models.Category]bool, len(q.Categories))
		for _, c := range q.Categories {
			catSet[c] = true
		}
	}

	var matches []Result
	for _, cell := range ix.overlappingCells(q.Lat, q.Lng, q.RadiusMeters) {
		for _, e := range cell {
			if catSet != nil && !catSet[e.Category] {
				continue
			}
			if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
				continue
			}
			d := geo.Distance(q.Lat, q.Lng, e.Lat, e.Lng)
			if d > q.RadiusMeters {
				continue
			}
			matches = append(matches, Result{Entry: *e, DistanceMeters: d})
		}
	}

	rank(matches, q.Sort)
	total := len(matches)

	if q.Offset >= total {
		return nil, total
	}
	matches = matches[q.Offset:]
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, total
}

// Range calls fn for every indexed entry until fn returns false. The
// callback runs under the read lock and must not mutate the index.
func (ix *Index) Range(fn func(Entry) bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, cell := range ix.cells {
		for _, e := range cell {
			if !fn(*e) {
				return
			}
		}
	}
}

// overlappingCells returns the cells intersecting the bounding box of the
// search circle. Longitude span widens with latitude; near the poles the
// scan degrades to a full longitude sweep, which is acceptable for a
// neighborhood-scale deployment.
func (ix *Index) overlappingCells(lat, lng, radiusM float64) []map[string]*Entry {
	latDelta := radiusM / metersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	lngDelta := 180.0
	if cosLat > 1e-6 {
		lngDelta = radiusM / (metersPerDegreeLat * cosLat)
	}

	minKey := ix.keyFor(lat-latDelta, lng-lngDelta)
	maxKey := ix.keyFor(lat+latDelta, lng+lngDelta)

	var cells []map[string]*Entry
	for latCell := minKey.latCell; latCell <= maxKey.latCell; latCell++ {
		for lngCell := minKey.lngCell; lngCell <= maxKey.lngCell; lngCell++ {
			if cell, ok := ix.cells[cellKey{latCell, lngCell}]; ok {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// rank orders results by the requested sort with deterministic tie-breaks:
// CreatedAt descending, then ID.
func rank(results []Result, s Sort) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch s {
		case SortRecent:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case SortConfirmed:
			if a.Confirm != b.Confirm {
				return a.Confirm > b.Confirm
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default: // SortNearest
			if a.DistanceMeters != b.DistanceMeters {
				return a.DistanceMeters < b.DistanceMeters
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
