// Package search answers full-text queries over the live proximity index:
// active posts within a radius whose content contains every query term,
// ranked by relevance then distance.
package search

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"kapitbahay/internal/geo"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
)

// Query bounds.
const (
	MinQueryLength  = 2
	MaxQueryLength  = 100
	MaxRadiusMeters = 2000
	DefaultLimit    = 20
)

var (
	ErrQueryLength       = errors.New("search: query must be between 2 and 100 characters")
	ErrInvalidCoordinate = errors.New("search: invalid coordinate")
)

// Result is one matching post with its ranking signals.
type Result struct {
	ID             string          `json:"id"`
	Content        string          `json:"content"`
	Category       models.Category `json:"category"`
	Relevance      float64         `json:"relevance_score"`
	DistanceMeters float64         `json:"distance_meters"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Service runs text queries against the live index.
type Service struct {
	index *proximity.Index
}

func NewService(index *proximity.Index) *Service {
	return &Service{index: index}
}

// Search returns up to DefaultLimit active posts within radiusMeters of the
// center whose content contains every term of q, ranked by relevance
// descending then distance ascending. A non-positive or oversized radius is
// clamped to MaxRadiusMeters.
func (s *Service) Search(q string, lat, lng, radiusMeters float64) ([]Result, error) {
	q = strings.TrimSpace(q)
	if n := utf8.RuneCountInString(q); n < MinQueryLength || n > MaxQueryLength {
		return nil, ErrQueryLength
	}
	if !geo.ValidCoordinate(lat, lng) {
		return nil, ErrInvalidCoordinate
	}
	if radiusMeters <= 0 || radiusMeters > MaxRadiusMeters {
		radiusMeters = MaxRadiusMeters
	}

	terms := tokenize(q)
	if len(terms) == 0 {
		return nil, ErrQueryLength
	}

	var results []Result
	s.index.Range(func(e proximity.Entry) bool {
		distance := geo.Distance(lat, lng, e.Lat, e.Lng)
		if distance > radiusMeters {
			return true
		}
		rel := relevance(terms, tokenize(e.Content))
		if rel == 0 {
			return true
		}
		results = append(results, Result{
			ID:             e.ID,
			Content:        e.Content,
			Category:       e.Category,
			Relevance:      rel,
			DistanceMeters: distance,
			CreatedAt:      e.CreatedAt,
		})
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].DistanceMeters != results[j].DistanceMeters {
			return results[i].DistanceMeters < results[j].DistanceMeters
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > DefaultLimit {
		results = results[:DefaultLimit]
	}
	return results, nil
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// relevance requires every query term to appear as a word of the content
// (the all-terms contract of the original full-text query) and weighs the
// match by term frequency over content length.
func relevance(terms, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	hits := 0
	for _, term := range terms {
		n, ok := counts[term]
		if !ok {
			return 0
		}
		hits += n
	}
	return float64(hits) / float64(len(words))
}
