package models

import (
	"fmt"
	"time"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationRead    NotificationStatus = "read"
	NotificationDeleted NotificationStatus = "deleted"
)

func ParseNotificationStatus(s string) (NotificationStatus, bool) {
	switch NotificationStatus(s) {
	case NotificationPending, NotificationSent, NotificationRead, NotificationDeleted:
		return NotificationStatus(s), true
	}
	return "", false
}

// NotificationRecord is created once per (user, hazard) pair when a hazard
// lands inside the user's radius and preferences.
type NotificationRecord struct {
	ID         string // uuid
	UserID     string
	HazardID   string
	HazardType HazardType
	DistanceKm float64
	Severity   Severity // severity at dispatch time
	CreatedAt  time.Time
	SentAt     *time.Time
	Status     NotificationStatus
}

// InvalidTransitionError reports a status change the notification lifecycle
// does not allow.
type InvalidTransitionError struct {
	From, To NotificationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("notification status cannot move from %s to %s", e.From, e.To)
}

// CanTransition reports whether a status change is legal:
// pending -> sent, sent -> read, and deleted from any live state.
// A transition to the current status is treated as legal so repeated user
// actions stay idempotent; deleted is terminal.
func CanTransition(from, to NotificationStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case NotificationPending:
		return to == NotificationSent || to == NotificationDeleted
	case NotificationSent:
		return to == NotificationRead || to == NotificationDeleted
	case NotificationRead:
		return to == NotificationDeleted
	}
	return false
}
