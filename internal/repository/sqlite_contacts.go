package repository

import (
	"context"
	"fmt"

	"github.com/ringnet/hazardcore/internal/models"
)

func (s *SQLiteStore) AddContact(ctx context.Context, c *models.EmergencyContact) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emergency_contacts (name, phone_number, role, priority, region)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.PhoneNumber, c.Role, c.Priority, c.Region,
	)
	if err != nil {
		return fmt.Errorf("error inserting contact %s: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *SQLiteStore) ListContactsByRegion(ctx context.Context, region string) ([]models.EmergencyContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone_number, role, priority, region
		FROM emergency_contacts
		WHERE region = ? OR region = ''
		ORDER BY priority DESC, name`, region)
	if err != nil {
		return nil, fmt.Errorf("error listing contacts for region %q: %w", region, err)
	}
	defer rows.Close()

	var out []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Role, &c.Priority, &c.Region); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
