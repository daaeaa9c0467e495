package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ringnet/hazardcore/internal/events"
	"github.com/ringnet/hazardcore/internal/geo"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

// Delivery hands a created notification to the external push/email
// collaborator. Delivery retries are the collaborator's concern, not ours.
type Delivery interface {
	Deliver(ctx context.Context, n *models.NotificationRecord, h *models.HazardRecord) error
}

// Dispatcher turns fresh hazard records into per-user notification records.
// Exactly-once per (user, hazard) is guaranteed by the store's unique
// constraint, so replaying a record is always safe.
type Dispatcher struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	delivery      Delivery
	metrics       *observability.Metrics

	defaultRadiusKm float64
}

func New(users repository.UserRepository, notifications repository.NotificationRepository, delivery Delivery, metrics *observability.Metrics, defaultRadiusKm float64) *Dispatcher {
	return &Dispatcher{
		users:           users,
		notifications:   notifications,
		delivery:        delivery,
		metrics:         metrics,
		defaultRadiusKm: defaultRadiusKm,
	}
}

// Run consumes the fresh-insert bus until the context is cancelled or the
// bus is closed.
func (d *Dispatcher) Run(ctx context.Context, bus *events.Bus) {
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-ch:
			if !ok {
				return
			}
			if err := d.OnNewHazardRecord(ctx, h); err != nil {
				slog.Error("dispatch failed", "hazard", h.ID, "error", err)
			}
		}
	}
}

// OnNewHazardRecord notifies every user whose preferences include the
// record's type and whose location lies within their radius of it.
func (d *Dispatcher) OnNewHazardRecord(ctx context.Context, h *models.HazardRecord) error {
	if err := h.Validate(); err != nil {
		return err
	}

	users, err := d.users.ListUsersByPreference(ctx, h.Type)
	if err != nil {
		return fmt.Errorf("error listing users for %s: %w", h.Type, err)
	}

	hazardPoint := geo.Point{Latitude: h.Location.Latitude, Longitude: h.Location.Longitude}

	for i := range users {
		u := &users[i]

		// The loaded profile is authoritative, whatever query produced
		// the candidate list.
		if !u.Prefers(h.Type) {
			continue
		}

		radius := u.RadiusKm
		if radius <= 0 {
			radius = d.defaultRadiusKm
		}

		distance := geo.HaversineKm(hazardPoint, geo.Point{
			Latitude:  u.Location.Latitude,
			Longitude: u.Location.Longitude,
		})
		if distance > radius {
			continue
		}

		n := &models.NotificationRecord{
			ID:         uuid.NewString(),
			UserID:     u.ID,
			HazardID:   h.ID,
			HazardType: h.Type,
			DistanceKm: distance,
			Severity:   h.Severity,
			CreatedAt:  time.Now().UTC(),
			Status:     models.NotificationPending,
		}

		created, err := d.notifications.CreateNotification(ctx, n)
		if err != nil {
			slog.Error("error creating notification",
				"user", u.ID, "hazard", h.ID, "error", err)
			continue
		}
		if !created {
			d.metrics.NotificationsSkipped.Inc()
			continue
		}

		d.metrics.NotificationsCreated.Inc()
		slog.Info("notification created",
			"user", u.ID, "hazard", h.ID, "distance_km", distance, "severity", h.Severity)

		if d.delivery == nil {
			continue
		}
		if err := d.delivery.Deliver(ctx, n, h); err != nil {
			d.metrics.DeliveryErrors.Inc()
			slog.Error("delivery hand-off failed",
				"notification", n.ID, "user", u.ID, "hazard", h.ID, "error", err)
			continue
		}
		if err := d.notifications.UpdateNotificationStatus(ctx, n.ID, models.NotificationSent); err != nil {
			slog.Error("error marking notification sent", "notification", n.ID, "error", err)
		}
	}

	return nil
}
