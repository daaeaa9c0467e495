package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringnet/hazardcore/internal/events"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

type recordingDelivery struct {
	mu        sync.Mutex
	delivered []string // notification ids
	fail      bool
}

func (r *recordingDelivery) Deliver(_ context.Context, n *models.NotificationRecord, _ *models.HazardRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.delivered = append(r.delivered, n.ID)
	return nil
}

func (r *recordingDelivery) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delivered)
}

func setupDispatcher(t *testing.T, delivery Delivery) (*Dispatcher, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	d := New(store, store, delivery, observability.NewMetricsForTesting(), 100)
	return d, store
}

func addUser(t *testing.T, store *repository.SQLiteStore, id string, lat, lon, radius float64, prefs ...models.HazardType) {
	t.Helper()
	err := store.AddUser(context.Background(), &models.UserProfile{
		ID:          id,
		Name:        id,
		Location:    models.Location{Latitude: lat, Longitude: lon},
		RadiusKm:    radius,
		Preferences: prefs,
	})
	require.NoError(t, err)
}

func sfQuake() *models.HazardRecord {
	return &models.HazardRecord{
		ID: "usgs_sf1", Type: models.HazardTypeEarthquake, SourceID: "sf1",
		Source: "usgs", Title: "M 6.0 - San Francisco",
		Location:   models.Location{Latitude: 37.77, Longitude: -122.41},
		OccurredAt: time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		Magnitude:  6.0,
		Severity:   models.SeverityHigh,
	}
}

func TestOnNewHazardRecord_NotifiesMatchingUsers(t *testing.T) {
	delivery := &recordingDelivery{}
	d, store := setupDispatcher(t, delivery)
	ctx := context.Background()

	addUser(t, store, "near_pref", 37.78, -122.42, 50, models.HazardTypeEarthquake)
	addUser(t, store, "near_nopref", 37.78, -122.42, 50, models.HazardTypeFlood)
	addUser(t, store, "far_pref", 48.0, 11.0, 50, models.HazardTypeEarthquake)

	require.NoError(t, d.OnNewHazardRecord(ctx, sfQuake()))

	list, err := store.ListNotificationsByUser(ctx, "near_pref")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationSent, list[0].Status, "delivered notifications move to sent")
	assert.InDelta(t, 1.42, list[0].DistanceKm, 0.1)
	assert.Equal(t, models.SeverityHigh, list[0].Severity)

	for _, id := range []string{"near_nopref", "far_pref"} {
		list, err := store.ListNotificationsByUser(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, list, "user %s must not be notified", id)
	}

	assert.Equal(t, 1, delivery.count())
}

func TestOnNewHazardRecord_ExactlyOnce(t *testing.T) {
	delivery := &recordingDelivery{}
	d, store := setupDispatcher(t, delivery)
	ctx := context.Background()

	addUser(t, store, "u1", 37.78, -122.42, 50, models.HazardTypeEarthquake)

	h := sfQuake()
	for i := 0; i < 3; i++ {
		require.NoError(t, d.OnNewHazardRecord(ctx, h))
	}

	list, err := store.ListNotificationsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "exactly one notification per (user, hazard) pair")
	assert.Equal(t, 1, delivery.count(), "replays must not re-deliver")
}

func TestOnNewHazardRecord_DeliveryFailureKeepsPending(t *testing.T) {
	delivery := &recordingDelivery{fail: true}
	d, store := setupDispatcher(t, delivery)
	ctx := context.Background()

	addUser(t, store, "u1", 37.78, -122.42, 50, models.HazardTypeEarthquake)

	require.NoError(t, d.OnNewHazardRecord(ctx, sfQuake()))

	list, err := store.ListNotificationsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1, "the record is created even when hand-off fails")
	assert.Equal(t, models.NotificationPending, list[0].Status)
}

func TestOnNewHazardRecord_DefaultRadius(t *testing.T) {
	delivery := &recordingDelivery{}
	d, store := setupDispatcher(t, delivery)
	ctx := context.Background()

	// Radius unset: the configured 100 km default applies.
	addUser(t, store, "u1", 37.0, -122.0, 0, models.HazardTypeEarthquake)

	require.NoError(t, d.OnNewHazardRecord(ctx, sfQuake()))

	list, err := store.ListNotificationsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOnNewHazardRecord_RejectsInvalidRecord(t *testing.T) {
	d, _ := setupDispatcher(t, &recordingDelivery{})

	bad := sfQuake()
	bad.Location.Longitude = -200

	err := d.OnNewHazardRecord(context.Background(), bad)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDispatcher_RunConsumesBus(t *testing.T) {
	delivery := &recordingDelivery{}
	d, store := setupDispatcher(t, delivery)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addUser(t, store, "u1", 37.78, -122.42, 50, models.HazardTypeEarthquake)

	bus := events.NewBus()
	done := make(chan struct{})
	go func() {
		d.Run(ctx, bus)
		close(done)
	}()

	// Give Run a moment to subscribe before publishing.
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	bus.Publish(sfQuake())

	require.Eventually(t, func() bool {
		list, err := store.ListNotificationsByUser(ctx, "u1")
		return err == nil && len(list) == 1
	}, 2*time.Second, 20*time.Millisecond)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after bus close")
	}
}

// staleUserRepo returns candidates regardless of their stored preferences,
// as a replica lagging behind a preference change would.
type staleUserRepo struct {
	users []models.UserProfile
}

func (r *staleUserRepo) AddUser(context.Context, *models.UserProfile) error { return nil }

func (r *staleUserRepo) GetUserByID(context.Context, string) (*models.UserProfile, error) {
	return nil, repository.ErrNotFound
}

func (r *staleUserRepo) ListUsersByPreference(context.Context, models.HazardType) ([]models.UserProfile, error) {
	return r.users, nil
}

func TestDispatcher_SkipsUsersWithoutPreference(t *testing.T) {
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	users := &staleUserRepo{users: []models.UserProfile{
		{
			ID:          "flood_only",
			Location:    models.Location{Latitude: 37.77, Longitude: -122.41},
			RadiusKm:    100,
			Preferences: []models.HazardType{models.HazardTypeFlood},
		},
		{
			ID:          "wants_quakes",
			Location:    models.Location{Latitude: 37.77, Longitude: -122.41},
			RadiusKm:    100,
			Preferences: []models.HazardType{models.HazardTypeEarthquake},
		},
	}}

	delivery := &recordingDelivery{}
	d := New(users, store, delivery, observability.NewMetricsForTesting(), 100)

	h := sfQuake()
	_, err = store.UpsertHazard(context.Background(), h)
	require.NoError(t, err)
	require.NoError(t, d.OnNewHazardRecord(context.Background(), h))

	assert.Equal(t, 1, delivery.count())

	list, err := store.ListNotificationsByUser(context.Background(), "flood_only")
	require.NoError(t, err)
	assert.Empty(t, list, "user without the preference gets nothing")

	list, err = store.ListNotificationsByUser(context.Background(), "wants_quakes")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
