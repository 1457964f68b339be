// internal/infra/database/postgres_contact_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"memorial_notification_service/internal/domain/contact"

	"github.com/google/uuid"
)

// ErrContactNotFound aliases the domain sentinel so existing infra callers
// and errors.Is checks against either name agree.
var ErrContactNotFound = contact.ErrNotFound

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

const contactColumns = `id, memorial_id, kind, address, active, opted_out,
	lead_days_override, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*contact.Contact, error) {
	c := contact.Contact{}
	err := row.Scan(
		&c.ID, &c.MemorialID, &c.Kind, &c.Address, &c.Active, &c.OptedOut,
		&c.LeadDaysOverride, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `INSERT INTO contacts (id, memorial_id, kind, address, active, opted_out, lead_days_override)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.MemorialID, c.Kind, c.Address, c.Active, c.OptedOut, c.LeadDaysOverride,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating contact: %w", err)
	}
	return nil
}

func (r *PostgresContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*contact.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("error getting contact by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresContactRepository) ListEligibleByMemorial(ctx context.Context, memorialID uuid.UUID) ([]*contact.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts
              WHERE memorial_id = $1 AND active = TRUE AND opted_out = FALSE
              ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, memorialID)
	if err != nil {
		return nil, fmt.Errorf("error querying eligible contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*contact.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact rows: %w", err)
	}
	return contacts, nil
}

func (r *PostgresContactRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deactivating contact %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (r *PostgresContactRepository) OptOut(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET opted_out = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error opting out contact %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (r *PostgresContactRepository) Update(ctx context.Context, c *contact.Contact) error {
	query := `UPDATE contacts
              SET kind = $1, address = $2, active = $3, opted_out = $4,
                  lead_days_override = $5, updated_at = NOW()
              WHERE id = $6
              RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.Kind, c.Address, c.Active, c.OptedOut, c.LeadDaysOverride, c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrContactNotFound
		}
		return fmt.Errorf("error updating contact: %w", err)
	}
	return nil
}
