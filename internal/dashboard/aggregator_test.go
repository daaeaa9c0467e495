package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringnet/hazardcore/internal/matcher"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/repository"
)

func setupAggregator(t *testing.T, now time.Time) (*Aggregator, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := clockwork.NewFakeClockAt(now)
	agg := New(store, store, matcher.New(store), clock, 72*time.Hour, 2, 100)
	return agg, store
}

func hazard(id string, t models.HazardType, lat, lon float64, occurred time.Time) *models.HazardRecord {
	return &models.HazardRecord{
		ID: id, Type: t, SourceID: id, Source: "test", Title: id,
		Location:   models.Location{Latitude: lat, Longitude: lon},
		OccurredAt: occurred,
		Magnitude:  6.0,
		Severity:   models.SeverityHigh,
	}
}

func TestActiveStats_RecencyWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	agg, store := setupAggregator(t, now)
	ctx := context.Background()

	_, err := store.BatchUpsertHazards(ctx, []*models.HazardRecord{
		hazard("eq1", models.HazardTypeEarthquake, 10, 10, now.Add(-time.Hour)),
		hazard("eq2", models.HazardTypeEarthquake, 11, 11, now.Add(-71*time.Hour)),
		hazard("eq3", models.HazardTypeEarthquake, 12, 12, now.Add(-73*time.Hour)), // outside window
		hazard("fl1", models.HazardTypeFlood, 13, 13, now.Add(-time.Hour)),
		hazard("hw1", models.HazardTypeHeatwave, 14, 14, now.Add(-2*time.Hour)),
	})
	require.NoError(t, err)

	stats, err := agg.ActiveStats(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Earthquakes)
	assert.Equal(t, 1, stats.Floods)
	assert.Equal(t, 1, stats.Heatwaves)
	assert.Equal(t, 0, stats.Tsunamis)
}

func TestActiveStats_WindowOverride(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	agg, store := setupAggregator(t, now)
	ctx := context.Background()

	_, err := store.BatchUpsertHazards(ctx, []*models.HazardRecord{
		hazard("eq1", models.HazardTypeEarthquake, 10, 10, now.Add(-30*time.Minute)),
		hazard("eq2", models.HazardTypeEarthquake, 11, 11, now.Add(-3*time.Hour)),
	})
	require.NoError(t, err)

	stats, err := agg.ActiveStats(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Earthquakes)
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	agg, store := setupAggregator(t, now)
	ctx := context.Background()

	_, err := store.BatchUpsertHazards(ctx, []*models.HazardRecord{
		hazard("eq_near", models.HazardTypeEarthquake, 37.8, -122.4, now.Add(-time.Hour)),
		hazard("eq_far", models.HazardTypeEarthquake, 48.0, 11.0, now.Add(-time.Hour)),
		hazard("fl_near", models.HazardTypeFlood, 37.9, -122.3, now.Add(-time.Hour)),
		hazard("eq_stale", models.HazardTypeEarthquake, 37.8, -122.5, now.Add(-100*time.Hour)),
	})
	require.NoError(t, err)

	require.NoError(t, store.AddContact(ctx, &models.EmergencyContact{
		Name: "SF Fire", PhoneNumber: "415-0000", Role: "fire", Priority: 5, Region: "bay-area",
	}))
	require.NoError(t, store.AddContact(ctx, &models.EmergencyContact{
		Name: "Elsewhere", PhoneNumber: "000", Role: "fire", Priority: 1, Region: "kanto",
	}))

	user := &models.UserProfile{
		ID:          "u1",
		Location:    models.Location{Latitude: 37.77, Longitude: -122.41},
		RadiusKm:    80,
		Region:      "bay-area",
		Preferences: []models.HazardType{models.HazardTypeEarthquake},
	}

	db, err := agg.BuildDashboard(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, 2, db.Stats.Earthquakes, "stats count all active records, not just nearby ones")
	require.Len(t, db.NearestAlerts, 1, "far, stale, and non-preferred records are excluded")
	assert.Equal(t, "eq_near", db.NearestAlerts[0].ID)
	assert.Greater(t, db.NearestAlerts[0].DistanceKm, 0.0)

	require.Len(t, db.Contacts, 1)
	assert.Equal(t, "SF Fire", db.Contacts[0].Name)
	assert.Equal(t, now, db.GeneratedAt)
}

func TestBuildDashboard_NearestLimit(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	agg, store := setupAggregator(t, now)
	ctx := context.Background()

	records := []*models.HazardRecord{
		hazard("a", models.HazardTypeFlood, 0.1, 0, now.Add(-time.Hour)),
		hazard("b", models.HazardTypeFlood, 0.2, 0, now.Add(-time.Hour)),
		hazard("c", models.HazardTypeFlood, 0.3, 0, now.Add(-time.Hour)),
	}
	_, err := store.BatchUpsertHazards(ctx, records)
	require.NoError(t, err)

	user := &models.UserProfile{
		ID:          "u1",
		Location:    models.Location{Latitude: 0, Longitude: 0},
		RadiusKm:    100,
		Preferences: []models.HazardType{models.HazardTypeFlood},
	}

	db, err := agg.BuildDashboard(ctx, user)
	require.NoError(t, err)

	require.Len(t, db.NearestAlerts, 2, "nearest limit caps results per type")
	assert.Equal(t, "a", db.NearestAlerts[0].ID)
	assert.Equal(t, "b", db.NearestAlerts[1].ID)
}

func TestBuildDashboard_DefaultRadius(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	agg, store := setupAggregator(t, now)
	ctx := context.Background()

	// ~55 km away, inside the 100 km default radius.
	_, err := store.BatchUpsertHazards(ctx, []*models.HazardRecord{
		hazard("eq1", models.HazardTypeEarthquake, 0.5, 0, now.Add(-time.Hour)),
	})
	require.NoError(t, err)

	user := &models.UserProfile{
		ID:          "u1",
		Location:    models.Location{Latitude: 0, Longitude: 0},
		RadiusKm:    0, // unset
		Preferences: []models.HazardType{models.HazardTypeEarthquake},
	}

	db, err := agg.BuildDashboard(ctx, user)
	require.NoError(t, err)
	assert.Len(t, db.NearestAlerts, 1)
}
