package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ringnet/hazardcore/internal/models"
)

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.UserProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting user insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, latitude, longitude, radius_km, region)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, email = excluded.email,
			latitude = excluded.latitude, longitude = excluded.longitude,
			radius_km = excluded.radius_km, region = excluded.region`,
		u.ID, u.Name, u.Email, u.Location.Latitude, u.Location.Longitude, u.RadiusKm, u.Region,
	)
	if err != nil {
		return fmt.Errorf("error inserting user %s: %w", u.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_preferences WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("error clearing preferences for user %s: %w", u.ID, err)
	}
	for _, t := range u.Preferences {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_preferences (user_id, hazard_type) VALUES (?, ?)`, u.ID, t); err != nil {
			return fmt.Errorf("error inserting preference %s for user %s: %w", t, u.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.UserProfile, error) {
	var u models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, latitude, longitude, radius_km, region
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Location.Latitude, &u.Location.Longitude, &u.RadiusKm, &u.Region,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching user %s: %w", id, err)
	}

	prefs, err := s.loadPreferences(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Preferences = prefs
	return &u, nil
}

func (s *SQLiteStore) ListUsersByPreference(ctx context.Context, t models.HazardType) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.latitude, u.longitude, u.radius_km, u.region
		FROM users u
		JOIN user_preferences p ON p.user_id = u.id
		WHERE p.hazard_type = ?`, t)
	if err != nil {
		return nil, fmt.Errorf("error listing users for %s: %w", t, err)
	}
	defer rows.Close()

	var users []models.UserProfile
	for rows.Next() {
		var u models.UserProfile
		if err := rows.Scan(&u.ID, &u.Name, &u.Email,
			&u.Location.Latitude, &u.Location.Longitude, &u.RadiusKm, &u.Region); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		prefs, err := s.loadPreferences(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Preferences = prefs
	}
	return users, nil
}

func (s *SQLiteStore) loadPreferences(ctx context.Context, userID string) ([]models.HazardType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hazard_type FROM user_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading preferences for user %s: %w", userID, err)
	}
	defer rows.Close()

	var prefs []models.HazardType
	for rows.Next() {
		var t models.HazardType
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		prefs = append(prefs, t)
	}
	return prefs, rows.Err()
}
