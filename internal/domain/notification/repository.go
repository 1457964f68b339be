package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateEntry signals the idempotency constraint: an entry for the same
// (memorial, contact, cycle year) already exists. Callers treat it as a no-op
// success, never as a failure.
var ErrDuplicateEntry = errors.New("ledger entry already exists for this cycle")

// ErrEntryNotFound is returned when no entry matches.
var ErrEntryNotFound = errors.New("ledger entry not found")

// ErrStaleStatus signals that a conditional update found the entry in a
// different status than expected. Another worker got there first.
var ErrStaleStatus = errors.New("ledger entry status changed concurrently")

// Repository defines persistence for the notification ledger. Every mutation
// is conditional on the entry's current status, never a blind overwrite; that
// is what makes concurrent sweep and dispatch safe without a global lock.
type Repository interface {
	// Create inserts the entry, returning ErrDuplicateEntry when a
	// non-cancelled entry for the same key exists.
	Create(ctx context.Context, e *LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	GetByKey(ctx context.Context, memorialID, contactID uuid.UUID, cycleYear int) (*LedgerEntry, error)
	ListByMemorial(ctx context.Context, memorialID uuid.UUID) ([]*LedgerEntry, error)

	// PromotePending flips PENDING entries whose scheduled_for has been
	// reached to DUE, returning the number promoted.
	PromotePending(ctx context.Context, now time.Time) (int, error)
	// ClaimDue atomically moves up to limit DUE entries whose retry time has
	// arrived into SENDING and returns them. Two concurrent callers never
	// receive the same entry.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*LedgerEntry, error)
	// RequeueStaleClaims returns SENDING entries claimed before the deadline
	// to DUE so a crashed worker's claims are recovered.
	RequeueStaleClaims(ctx context.Context, claimedBefore time.Time) (int, error)

	// MarkSent records a successful delivery (SENDING -> SENT).
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkRetry records a transient failure (SENDING -> DUE) with the next
	// retry time and error detail.
	MarkRetry(ctx context.Context, id uuid.UUID, at, nextRetry time.Time, attempt int, detail string) error
	// MarkFailed records a terminal failure (SENDING -> FAILED).
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, attempt int, detail string) error

	// CancelByMemorial and CancelByContact cancel all non-terminal entries
	// for the given owner, returning how many were cancelled.
	CancelByMemorial(ctx context.Context, memorialID uuid.UUID) (int, error)
	CancelByContact(ctx context.Context, contactID uuid.UUID) (int, error)
	// CancelByID cancels a single claimed entry (used when an opt-out is
	// discovered mid-flight).
	CancelByID(ctx context.Context, id uuid.UUID) error
}
