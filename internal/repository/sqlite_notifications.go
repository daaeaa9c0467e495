package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ringnet/hazardcore/internal/models"
)

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.NotificationRecord) (bool, error) {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	// The (user_id, hazard_id) unique index makes the exactly-once check
	// atomic; a second dispatch for the same pair affects zero rows.
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications
			(id, user_id, hazard_id, hazard_type, distance_km, severity, status, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.HazardID, n.HazardType, n.DistanceKm, n.Severity,
		n.Status, created.UTC(), n.SentAt,
	)
	if err != nil {
		return false, fmt.Errorf("error creating notification for user %s hazard %s: %w", n.UserID, n.HazardID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *SQLiteStore) GetNotificationByID(ctx context.Context, id string) (*models.NotificationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, hazard_id, hazard_type, distance_km, severity, status, created_at, sent_at
		FROM notifications WHERE id = ?`, id)

	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching notification %s: %w", id, err)
	}
	return n, nil
}

func (s *SQLiteStore) ListNotificationsByUser(ctx context.Context, userID string) ([]models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, hazard_id, hazard_type, distance_km, severity, status, created_at, sent_at
		FROM notifications
		WHERE user_id = ? AND status != ?
		ORDER BY created_at DESC`, userID, models.NotificationDeleted)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.NotificationRecord
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting status update: %w", err)
	}
	defer tx.Rollback()

	var current models.NotificationStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM notifications WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error reading notification %s: %w", id, err)
	}

	if current == status {
		// Repeating a user action on a record already in that state is a no-op.
		return nil
	}
	if !models.CanTransition(current, status) {
		return &models.InvalidTransitionError{From: current, To: status}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE notifications
		SET status = ?,
			sent_at = CASE WHEN ? = ? THEN ? ELSE sent_at END
		WHERE id = ?`,
		status, status, models.NotificationSent, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("error updating notification %s to %s: %w", id, status, err)
	}

	return tx.Commit()
}

func scanNotification(row rowScanner) (*models.NotificationRecord, error) {
	var (
		n      models.NotificationRecord
		sentAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.UserID, &n.HazardID, &n.HazardType,
		&n.DistanceKm, &n.Severity, &n.Status, &n.CreatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	return &n, nil
}
