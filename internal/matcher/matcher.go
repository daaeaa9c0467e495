package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ringnet/hazardcore/internal/geo"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/repository"
)

// Match pairs a hazard record with its distance from the query point.
type Match struct {
	Record     models.HazardRecord
	DistanceKm float64
}

// Matcher answers proximity queries against the hazard store.
type Matcher struct {
	store repository.HazardRepository
}

func New(store repository.HazardRepository) *Matcher {
	return &Matcher{store: store}
}

// FindNear returns the records within radiusKm of point (boundary
// inclusive), nearest first; equal distances rank the more recent record
// first. A nil typeFilter matches every hazard type. The repository filter
// narrows candidates by type; distance filtering is done here because the
// store has no spatial index.
func (m *Matcher) FindNear(ctx context.Context, point geo.Point, radiusKm float64, typeFilter *models.HazardType, opts ...FilterOption) ([]Match, error) {
	if !point.Valid() {
		return nil, &models.ValidationError{Field: "point", Reason: fmt.Sprintf("(%v, %v) out of range", point.Latitude, point.Longitude)}
	}
	if radiusKm < 0 {
		return nil, &models.ValidationError{Field: "radius_km", Reason: "must be non-negative"}
	}

	filter := repository.Filter{Type: typeFilter}
	for _, opt := range opts {
		opt(&filter)
	}

	candidates, err := m.store.ListHazards(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing candidates: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, h := range candidates {
		d := geo.HaversineKm(point, geo.Point{
			Latitude:  h.Location.Latitude,
			Longitude: h.Location.Longitude,
		})
		if d <= radiusKm {
			matches = append(matches, Match{Record: h, DistanceKm: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].Record.OccurredAt.After(matches[j].Record.OccurredAt)
	})

	return matches, nil
}

// FilterOption narrows the candidate set before distance filtering.
type FilterOption func(*repository.Filter)

// WithSince restricts candidates to records occurring at or after t.
func WithSince(t time.Time) FilterOption {
	return func(f *repository.Filter) {
		f.Since = &t
	}
}

// WithMinSeverity restricts candidates to records at or above the level.
func WithMinSeverity(s models.Severity) FilterOption {
	return func(f *repository.Filter) {
		f.MinSeverity = &s
	}
}
