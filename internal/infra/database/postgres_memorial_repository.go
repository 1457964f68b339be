// internal/infra/database/postgres_memorial_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"memorial_notification_service/internal/domain/hebcal"
	"memorial_notification_service/internal/domain/memorial"

	"github.com/google/uuid"
)

var ErrMemorialNotFound = fmt.Errorf("memorial not found")

type PostgresMemorialRepository struct {
	db *sql.DB
}

func NewPostgresMemorialRepository(db *sql.DB) *PostgresMemorialRepository {
	return &PostgresMemorialRepository{db: db}
}

const memorialColumns = `id, name, death_date_gregorian,
	death_h_year, death_h_month, death_h_day,
	anniv_h_year, anniv_h_month, anniv_h_day,
	next_occurrence, stale, deleted_at, created_at, updated_at`

func scanMemorial(row interface{ Scan(...any) error }) (*memorial.Memorial, error) {
	m := memorial.Memorial{}
	var deathMonth, annivMonth int
	err := row.Scan(
		&m.ID, &m.Name, &m.DeathDateGregorian,
		&m.DeathDateHebrew.Year, &deathMonth, &m.DeathDateHebrew.Day,
		&m.AnniversaryHebrew.Year, &annivMonth, &m.AnniversaryHebrew.Day,
		&m.NextOccurrence, &m.Stale, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.DeathDateHebrew.Month = hebcal.Month(deathMonth)
	m.AnniversaryHebrew.Month = hebcal.Month(annivMonth)
	return &m, nil
}

func (r *PostgresMemorialRepository) Create(ctx context.Context, m *memorial.Memorial) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `INSERT INTO memorials (id, name, death_date_gregorian,
                death_h_year, death_h_month, death_h_day,
                anniv_h_year, anniv_h_month, anniv_h_day,
                next_occurrence, stale)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.Name, m.DeathDateGregorian,
		m.DeathDateHebrew.Year, int(m.DeathDateHebrew.Month), m.DeathDateHebrew.Day,
		m.AnniversaryHebrew.Year, int(m.AnniversaryHebrew.Month), m.AnniversaryHebrew.Day,
		m.NextOccurrence, m.Stale,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating memorial: %w", err)
	}
	return nil
}

func (r *PostgresMemorialRepository) GetByID(ctx context.Context, id uuid.UUID) (*memorial.Memorial, error) {
	query := `SELECT ` + memorialColumns + ` FROM memorials WHERE id = $1`
	m, err := scanMemorial(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMemorialNotFound
		}
		return nil, fmt.Errorf("error getting memorial by ID: %w", err)
	}
	return m, nil
}

func (r *PostgresMemorialRepository) UpdateCalendarFields(ctx context.Context, m *memorial.Memorial) error {
	query := `UPDATE memorials
              SET death_date_gregorian = $1,
                  death_h_year = $2, death_h_month = $3, death_h_day = $4,
                  anniv_h_year = $5, anniv_h_month = $6, anniv_h_day = $7,
                  next_occurrence = $8, stale = FALSE, updated_at = NOW()
              WHERE id = $9
              RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		m.DeathDateGregorian,
		m.DeathDateHebrew.Year, int(m.DeathDateHebrew.Month), m.DeathDateHebrew.Day,
		m.AnniversaryHebrew.Year, int(m.AnniversaryHebrew.Month), m.AnniversaryHebrew.Day,
		m.NextOccurrence, m.ID,
	).Scan(&m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrMemorialNotFound
		}
		return fmt.Errorf("error updating memorial calendar fields: %w", err)
	}
	m.Stale = false
	return nil
}

func (r *PostgresMemorialRepository) ListDueForSweep(ctx context.Context, windowEnd time.Time) ([]*memorial.Memorial, error) {
	query := `SELECT ` + memorialColumns + ` FROM memorials
              WHERE deleted_at IS NULL AND stale = FALSE
                AND next_occurrence <= $1
              ORDER BY next_occurrence`
	rows, err := r.db.QueryContext(ctx, query, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("error querying memorials due for sweep: %w", err)
	}
	defer rows.Close()
	return collectMemorials(rows)
}

// RollOccurrence advances next_occurrence conditionally on the stored value
// still matching prior, so two overlapping sweeps cannot double-advance.
func (r *PostgresMemorialRepository) RollOccurrence(ctx context.Context, id uuid.UUID, prior, next time.Time) error {
	query := `UPDATE memorials SET next_occurrence = $1, updated_at = NOW()
              WHERE id = $2 AND next_occurrence = $3`
	res, err := r.db.ExecContext(ctx, query, next, id, prior)
	if err != nil {
		return fmt.Errorf("error rolling occurrence for memorial %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemorialNotFound
	}
	return nil
}

func (r *PostgresMemorialRepository) MarkStale(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memorials SET stale = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error marking memorial %s stale: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemorialNotFound
	}
	return nil
}

func (r *PostgresMemorialRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memorials SET deleted_at = NOW(), updated_at = NOW()
         WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("error soft-deleting memorial %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemorialNotFound
	}
	return nil
}

func (r *PostgresMemorialRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]*memorial.Memorial, error) {
	query := `SELECT ` + memorialColumns + ` FROM memorials
              WHERE deleted_at IS NULL AND next_occurrence BETWEEN $1 AND $2
              ORDER BY next_occurrence`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying upcoming memorials: %w", err)
	}
	defer rows.Close()
	return collectMemorials(rows)
}

func (r *PostgresMemorialRepository) ListStale(ctx context.Context) ([]*memorial.Memorial, error) {
	query := `SELECT ` + memorialColumns + ` FROM memorials
              WHERE deleted_at IS NULL AND stale = TRUE ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying stale memorials: %w", err)
	}
	defer rows.Close()
	return collectMemorials(rows)
}

func collectMemorials(rows *sql.Rows) ([]*memorial.Memorial, error) {
	memorials := make([]*memorial.Memorial, 0)
	for rows.Next() {
		m, err := scanMemorial(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning memorial row: %w", err)
		}
		memorials = append(memorials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memorial rows: %w", err)
	}
	return memorials, nil
}
