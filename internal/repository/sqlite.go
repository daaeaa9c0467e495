package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ringnet/hazardcore/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Concurrent upserts from fetch runs and the live pollers share one
	// connection so SQLite serializes them instead of returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS hazards (
			id TEXT PRIMARY KEY,
			hazard_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			place_name TEXT,
			occurred_at DATETIME NOT NULL,
			magnitude REAL,
			severity TEXT NOT NULL,
			fatalities INTEGER NOT NULL DEFAULT 0,
			injuries INTEGER NOT NULL DEFAULT 0,
			damage_estimate REAL NOT NULL DEFAULT 0,
			raw BLOB,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (hazard_type, source_id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			radius_km REAL NOT NULL,
			region TEXT
		);

		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT NOT NULL,
			hazard_type TEXT NOT NULL,
			PRIMARY KEY (user_id, hazard_type),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			hazard_id TEXT NOT NULL,
			hazard_type TEXT NOT NULL,
			distance_km REAL NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			sent_at DATETIME,
			UNIQUE (user_id, hazard_id)
		);

		CREATE TABLE IF NOT EXISTS emergency_contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			role TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			region TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_hazards_occurred_at ON hazards(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_hazards_type ON hazards(hazard_type);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
		CREATE INDEX IF NOT EXISTS idx_preferences_type ON user_preferences(hazard_type);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const hazardColumns = `id, hazard_type, source_id, source, title, latitude, longitude, place_name,
	occurred_at, magnitude, severity, fatalities, injuries, damage_estimate, raw, created_at, updated_at`

func (s *SQLiteStore) UpsertHazard(ctx context.Context, h *models.HazardRecord) (bool, error) {
	if err := h.Validate(); err != nil {
		return false, err
	}
	return upsertHazard(ctx, s.db, h)
}

func (s *SQLiteStore) BatchUpsertHazards(ctx context.Context, hs []*models.HazardRecord) (int, error) {
	for _, h := range hs {
		if err := h.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting batch upsert: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, h := range hs {
		fresh, err := upsertHazard(ctx, tx, h)
		if err != nil {
			return 0, err
		}
		if fresh {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing batch upsert: %w", err)
	}
	return inserted, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertHazard relies on the (hazard_type, source_id) unique index for
// dedup: the INSERT OR IGNORE either wins the key or leaves zero rows, and
// the losing path applies a corrective update. A blank id is derived from
// the key so an unset id can never alias two distinct events, and an ignore
// whose corrective update matches no row means the insert was blocked by an
// id collision, not the key, and is reported as an error rather than a
// silent drop. No application-level locking.
func upsertHazard(ctx context.Context, db execer, h *models.HazardRecord) (bool, error) {
	if h.ID == "" {
		h.ID = string(h.Type) + "_" + h.SourceID
	}
	now := time.Now().UTC()

	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO hazards (`+hazardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Type, h.SourceID, h.Source, h.Title,
		h.Location.Latitude, h.Location.Longitude, h.Location.PlaceName,
		h.OccurredAt.UTC(), h.Magnitude, h.Severity,
		h.Fatalities, h.Injuries, h.DamageEstimate, h.Raw, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("error inserting hazard %s/%s: %w", h.Type, h.SourceID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	// Corrective update for re-fetched upstream events.
	res, err = db.ExecContext(ctx, `
		UPDATE hazards
		SET title = ?, latitude = ?, longitude = ?, place_name = ?, occurred_at = ?,
			magnitude = ?, severity = ?, fatalities = ?, injuries = ?, damage_estimate = ?,
			raw = ?, updated_at = ?
		WHERE hazard_type = ? AND source_id = ?`,
		h.Title, h.Location.Latitude, h.Location.Longitude, h.Location.PlaceName,
		h.OccurredAt.UTC(), h.Magnitude, h.Severity, h.Fatalities, h.Injuries,
		h.DamageEstimate, h.Raw, now, h.Type, h.SourceID,
	)
	if err != nil {
		return false, fmt.Errorf("error updating hazard %s/%s: %w", h.Type, h.SourceID, err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, fmt.Errorf("hazard id %q already used by another record, refusing %s/%s", h.ID, h.Type, h.SourceID)
	}
	return false, nil
}

func (s *SQLiteStore) GetHazardByID(ctx context.Context, id string) (*models.HazardRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hazardColumns+` FROM hazards WHERE id = ?`, id)

	h, err := scanHazard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching hazard %s: %w", id, err)
	}
	return h, nil
}

func (s *SQLiteStore) ListHazards(ctx context.Context, opts Filter) ([]models.HazardRecord, error) {
	query := `SELECT ` + hazardColumns + ` FROM hazards`
	var (
		clauses []string
		args    []any
	)

	if opts.Type != nil {
		clauses = append(clauses, "hazard_type = ?")
		args = append(args, *opts.Type)
	}
	if opts.Since != nil {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, opts.Since.UTC())
	}
	if opts.MinMagnitude != nil {
		clauses = append(clauses, "magnitude >= ?")
		args = append(args, *opts.MinMagnitude)
	}
	if opts.MinSeverity != nil {
		accepted := severitiesAtOrAbove(*opts.MinSeverity)
		clauses = append(clauses, "severity IN (?"+strings.Repeat(", ?", len(accepted)-1)+")")
		for _, sev := range accepted {
			args = append(args, sev)
		}
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing hazards: %w", err)
	}
	defer rows.Close()

	var out []models.HazardRecord
	for rows.Next() {
		h, err := scanHazard(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning hazard: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountHazardsByType(ctx context.Context, since time.Time) (map[models.HazardType]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hazard_type, COUNT(*) FROM hazards
		WHERE occurred_at >= ?
		GROUP BY hazard_type`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("error counting hazards: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.HazardType]int, len(models.HazardTypes))
	for rows.Next() {
		var (
			t models.HazardType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHazard(row rowScanner) (*models.HazardRecord, error) {
	var (
		h     models.HazardRecord
		place sql.NullString
	)
	err := row.Scan(
		&h.ID, &h.Type, &h.SourceID, &h.Source, &h.Title,
		&h.Location.Latitude, &h.Location.Longitude, &place,
		&h.OccurredAt, &h.Magnitude, &h.Severity,
		&h.Fatalities, &h.Injuries, &h.DamageEstimate, &h.Raw,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.Location.PlaceName = place.String
	return &h, nil
}

// severitiesAtOrAbove returns the severity labels ranked at or above min.
func severitiesAtOrAbove(min models.Severity) []models.Severity {
	order := []models.Severity{
		models.SeverityLow,
		models.SeverityModerate,
		models.SeverityHigh,
		models.SeverityCritical,
	}
	for i, sev := range order {
		if sev == min {
			return order[i:]
		}
	}
	return order
}
