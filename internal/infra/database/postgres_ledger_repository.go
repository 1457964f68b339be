// internal/infra/database/postgres_ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"memorial_notification_service/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

const ledgerColumns = `id, memorial_id, contact_id, cycle_year, status,
	scheduled_for, occurrence_date, attempt_count, last_attempt_at,
	next_retry_at, claimed_at, channel_kind, payload_subject, payload_body,
	last_error, created_at, updated_at`

func scanLedgerEntry(row interface{ Scan(...any) error }) (*notification.LedgerEntry, error) {
	e := notification.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.MemorialID, &e.ContactID, &e.CycleYear, &e.Status,
		&e.ScheduledFor, &e.OccurrenceDate, &e.AttemptCount, &e.LastAttemptAt,
		&e.NextRetryAt, &e.ClaimedAt, &e.ChannelKind, &e.Payload.Subject,
		&e.Payload.Body, &e.LastError, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresLedgerRepository) Create(ctx context.Context, e *notification.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `INSERT INTO ledger_entries (id, memorial_id, contact_id, cycle_year,
                status, scheduled_for, occurrence_date, attempt_count,
                channel_kind, payload_subject, payload_body)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.MemorialID, e.ContactID, e.CycleYear,
		e.Status, e.ScheduledFor, e.OccurrenceDate, e.AttemptCount,
		e.ChannelKind, e.Payload.Subject, e.Payload.Body,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "ledger_cycle_unique") {
			return notification.ErrDuplicateEntry
		}
		return fmt.Errorf("error creating ledger entry: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`
	e, err := scanLedgerEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting ledger entry by ID: %w", err)
	}
	return e, nil
}

func (r *PostgresLedgerRepository) GetByKey(ctx context.Context, memorialID, contactID uuid.UUID, cycleYear int) (*notification.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
              WHERE memorial_id = $1 AND contact_id = $2 AND cycle_year = $3
                AND status != $4
              ORDER BY created_at DESC LIMIT 1`
	e, err := scanLedgerEntry(r.db.QueryRowContext(ctx, query,
		memorialID, contactID, cycleYear, notification.StatusCancelled))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting ledger entry by key: %w", err)
	}
	return e, nil
}

func (r *PostgresLedgerRepository) ListByMemorial(ctx context.Context, memorialID uuid.UUID) ([]*notification.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
              WHERE memorial_id = $1 ORDER BY cycle_year DESC, created_at`
	rows, err := r.db.QueryContext(ctx, query, memorialID)
	if err != nil {
		return nil, fmt.Errorf("error querying ledger entries by memorial: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

func (r *PostgresLedgerRepository) PromotePending(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET status = $1, updated_at = NOW()
         WHERE status = $2 AND scheduled_for <= $3`,
		notification.StatusDue, notification.StatusPending, now)
	if err != nil {
		return 0, fmt.Errorf("error promoting pending ledger entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClaimDue atomically flips a batch of due entries to SENDING. The inner
// SELECT takes row locks with SKIP LOCKED so concurrent dispatchers never
// claim the same entry.
func (r *PostgresLedgerRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*notification.LedgerEntry, error) {
	query := `UPDATE ledger_entries SET status = $1, claimed_at = $2, updated_at = NOW()
              WHERE id IN (
                  SELECT id FROM ledger_entries
                  WHERE status = $3 AND (next_retry_at IS NULL OR next_retry_at <= $2)
                  ORDER BY scheduled_for
                  LIMIT $4
                  FOR UPDATE SKIP LOCKED
              )
              RETURNING ` + ledgerColumns
	rows, err := r.db.QueryContext(ctx, query,
		notification.StatusSending, now, notification.StatusDue, limit)
	if err != nil {
		return nil, fmt.Errorf("error claiming due ledger entries: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

func (r *PostgresLedgerRepository) RequeueStaleClaims(ctx context.Context, claimedBefore time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET status = $1, claimed_at = NULL, updated_at = NOW()
         WHERE status = $2 AND claimed_at < $3`,
		notification.StatusDue, notification.StatusSending, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("error requeueing stale claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// conditionalUpdate runs an update guarded by the expected current status and
// maps zero affected rows to ErrStaleStatus.
func (r *PostgresLedgerRepository) conditionalUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrStaleStatus
	}
	return nil
}

func (r *PostgresLedgerRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ledger_entries
         SET status = $1, attempt_count = attempt_count + 1, last_attempt_at = $2,
             claimed_at = NULL, last_error = NULL, updated_at = NOW()
         WHERE id = $3 AND status = $4`,
		notification.StatusSent, at, id, notification.StatusSending)
}

func (r *PostgresLedgerRepository) MarkRetry(ctx context.Context, id uuid.UUID, at, nextRetry time.Time, attempt int, detail string) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ledger_entries
         SET status = $1, attempt_count = $2, last_attempt_at = $3,
             next_retry_at = $4, claimed_at = NULL, last_error = $5, updated_at = NOW()
         WHERE id = $6 AND status = $7`,
		notification.StatusDue, attempt, at, nextRetry, detail, id, notification.StatusSending)
}

func (r *PostgresLedgerRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, attempt int, detail string) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ledger_entries
         SET status = $1, attempt_count = $2, last_attempt_at = $3,
             claimed_at = NULL, last_error = $4, updated_at = NOW()
         WHERE id = $5 AND status = $6`,
		notification.StatusFailed, attempt, at, detail, id, notification.StatusSending)
}

func (r *PostgresLedgerRepository) cancelWhere(ctx context.Context, column string, id uuid.UUID) (int, error) {
	nonTerminal := []string{
		string(notification.StatusPending),
		string(notification.StatusDue),
		string(notification.StatusSending),
	}
	query := fmt.Sprintf(
		`UPDATE ledger_entries SET status = $1, claimed_at = NULL, updated_at = NOW()
         WHERE %s = $2 AND status = ANY($3::varchar[])`, column)
	res, err := r.db.ExecContext(ctx, query,
		notification.StatusCancelled, id, pq.Array(nonTerminal))
	if err != nil {
		return 0, fmt.Errorf("error cancelling ledger entries by %s: %w", column, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PostgresLedgerRepository) CancelByMemorial(ctx context.Context, memorialID uuid.UUID) (int, error) {
	return r.cancelWhere(ctx, "memorial_id", memorialID)
}

func (r *PostgresLedgerRepository) CancelByContact(ctx context.Context, contactID uuid.UUID) (int, error) {
	return r.cancelWhere(ctx, "contact_id", contactID)
}

func (r *PostgresLedgerRepository) CancelByID(ctx context.Context, id uuid.UUID) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ledger_entries SET status = $1, claimed_at = NULL, updated_at = NOW()
         WHERE id = $2 AND status != $1 AND status NOT IN ($3, $4)`,
		notification.StatusCancelled, id, notification.StatusSent, notification.StatusFailed)
}

func collectLedgerEntries(rows *sql.Rows) ([]*notification.LedgerEntry, error) {
	entries := make([]*notification.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}
