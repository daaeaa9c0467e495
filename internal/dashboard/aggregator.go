package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ringnet/hazardcore/internal/geo"
	"github.com/ringnet/hazardcore/internal/matcher"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/repository"
)

// Stats is the per-type count of active hazard records.
type Stats struct {
	Earthquakes int `json:"earthquakes"`
	Floods      int `json:"floods"`
	Heatwaves   int `json:"heatwaves"`
	Tsunamis    int `json:"tsunamis"`
	Other       int `json:"other"`
}

// AlertView is one nearby hazard as rendered on a dashboard.
type AlertView struct {
	ID         string            `json:"id"`
	Type       models.HazardType `json:"type"`
	Severity   models.Severity   `json:"severity"`
	Title      string            `json:"title"`
	Location   models.Location   `json:"location"`
	Timestamp  time.Time         `json:"timestamp"`
	DistanceKm float64           `json:"distance_km"`
}

type Dashboard struct {
	UserID        string                    `json:"user_id"`
	Stats         Stats                     `json:"stats"`
	NearestAlerts []AlertView               `json:"nearest_alerts"`
	Contacts      []models.EmergencyContact `json:"emergency_contacts"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

// Aggregator composes per-user dashboards. Pure read path: nothing here
// mutates the store.
type Aggregator struct {
	hazards  repository.HazardRepository
	contacts repository.ContactRepository
	matcher  *matcher.Matcher
	clock    clockwork.Clock

	window          time.Duration // recency window for "active"
	nearestLimit    int
	defaultRadiusKm float64
}

func New(hazards repository.HazardRepository, contacts repository.ContactRepository, m *matcher.Matcher, clock clockwork.Clock, window time.Duration, nearestLimit int, defaultRadiusKm float64) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		hazards:         hazards,
		contacts:        contacts,
		matcher:         m,
		clock:           clock,
		window:          window,
		nearestLimit:    nearestLimit,
		defaultRadiusKm: defaultRadiusKm,
	}
}

// ActiveStats counts active records per hazard type. A zero window uses the
// configured default.
func (a *Aggregator) ActiveStats(ctx context.Context, window time.Duration) (Stats, error) {
	if window <= 0 {
		window = a.window
	}
	since := a.clock.Now().Add(-window)

	counts, err := a.hazards.CountHazardsByType(ctx, since)
	if err != nil {
		return Stats{}, fmt.Errorf("error counting active hazards: %w", err)
	}
	return Stats{
		Earthquakes: counts[models.HazardTypeEarthquake],
		Floods:      counts[models.HazardTypeFlood],
		Heatwaves:   counts[models.HazardTypeHeatwave],
		Tsunamis:    counts[models.HazardTypeTsunami],
		Other:       counts[models.HazardTypeGeneric],
	}, nil
}

// BuildDashboard assembles the user's stats, their nearest active alerts
// within their radius, and the emergency contacts for their region.
func (a *Aggregator) BuildDashboard(ctx context.Context, user *models.UserProfile) (*Dashboard, error) {
	now := a.clock.Now()

	stats, err := a.ActiveStats(ctx, 0)
	if err != nil {
		return nil, err
	}

	radius := user.RadiusKm
	if radius <= 0 {
		radius = a.defaultRadiusKm
	}

	point := geo.Point{Latitude: user.Location.Latitude, Longitude: user.Location.Longitude}
	since := now.Add(-a.window)

	var nearest []AlertView
	for _, t := range user.Preferences {
		hazardType := t
		matches, err := a.matcher.FindNear(ctx, point, radius, &hazardType, matcher.WithSince(since))
		if err != nil {
			return nil, fmt.Errorf("error matching %s alerts: %w", t, err)
		}
		if len(matches) > a.nearestLimit {
			matches = matches[:a.nearestLimit]
		}
		for _, match := range matches {
			nearest = append(nearest, AlertView{
				ID:         match.Record.ID,
				Type:       match.Record.Type,
				Severity:   match.Record.Severity,
				Title:      match.Record.Title,
				Location:   match.Record.Location,
				Timestamp:  match.Record.OccurredAt,
				DistanceKm: match.DistanceKm,
			})
		}
	}

	contacts, err := a.contacts.ListContactsByRegion(ctx, user.Region)
	if err != nil {
		return nil, fmt.Errorf("error loading contacts for region %q: %w", user.Region, err)
	}

	return &Dashboard{
		UserID:        user.ID,
		Stats:         stats,
		NearestAlerts: nearest,
		Contacts:      contacts,
		GeneratedAt:   now,
	}, nil
}
