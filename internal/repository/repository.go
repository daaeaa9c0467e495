package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ringnet/hazardcore/internal/models"
)

// ErrNotFound is returned when acting on an id that does not exist.
var ErrNotFound = errors.New("record not found")

type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time
	Type         *models.HazardType
	MinMagnitude *float64
	MinSeverity  *models.Severity // >= this level (e.g. HIGH includes HIGH and CRITICAL)
}

type HazardRepository interface {
	// UpsertHazard inserts or corrects a record keyed by (type, source_id)
	// and reports whether it was a fresh insert. Concurrent upserts for the
	// same key are serialized by the store's unique constraint.
	UpsertHazard(ctx context.Context, h *models.HazardRecord) (bool, error)
	// BatchUpsertHazards applies UpsertHazard semantics to a slice in a
	// single transaction, returning the number of fresh inserts.
	BatchUpsertHazards(ctx context.Context, hs []*models.HazardRecord) (int, error)
	GetHazardByID(ctx context.Context, id string) (*models.HazardRecord, error)
	ListHazards(ctx context.Context, opts Filter) ([]models.HazardRecord, error)
	CountHazardsByType(ctx context.Context, since time.Time) (map[models.HazardType]int, error)
}

type UserRepository interface {
	AddUser(ctx context.Context, u *models.UserProfile) error
	GetUserByID(ctx context.Context, id string) (*models.UserProfile, error)
	// ListUsersByPreference returns every user whose alert preferences
	// include the given hazard type.
	ListUsersByPreference(ctx context.Context, t models.HazardType) ([]models.UserProfile, error)
}

type NotificationRepository interface {
	// CreateNotification inserts the record unless one already exists for
	// its (user_id, hazard_id) pair, reporting whether it was created. The
	// check-then-create is atomic at the constraint, not in application code.
	CreateNotification(ctx context.Context, n *models.NotificationRecord) (bool, error)
	GetNotificationByID(ctx context.Context, id string) (*models.NotificationRecord, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]models.NotificationRecord, error)
	// UpdateNotificationStatus applies the notification lifecycle. Setting
	// the current status again is a no-op; illegal moves return
	// *models.InvalidTransitionError.
	UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus) error
}

type ContactRepository interface {
	AddContact(ctx context.Context, c *models.EmergencyContact) error
	// ListContactsByRegion returns the region's contacts plus global ones,
	// highest priority first.
	ListContactsByRegion(ctx context.Context, region string) ([]models.EmergencyContact, error)
}

// Store is the full persistence surface the service wires together.
type Store interface {
	HazardRepository
	UserRepository
	NotificationRepository
	ContactRepository
	Close() error
}
