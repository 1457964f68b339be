package notification

import (
	"database/sql"
	"time"

	"memorial_notification_service/internal/domain/contact"

	"github.com/google/uuid"
)

// Payload is the channel-agnostic rendered content of a notification.
type Payload struct {
	Subject string
	Body    string
}

// LedgerEntry is one scheduled notification attempt for a single contact and
// anniversary cycle. The triple (MemorialID, ContactID, CycleYear) is the
// idempotency key: at most one non-cancelled entry exists per triple, enforced
// by a partial unique index. Entries are never deleted; terminal states remain
// for audit.
type LedgerEntry struct {
	ID         uuid.UUID
	MemorialID uuid.UUID
	ContactID  uuid.UUID
	// CycleYear is the Gregorian year of the occurrence this entry was
	// created for.
	CycleYear int
	Status    Status
	// ScheduledFor is when the entry becomes eligible for dispatch (lead time
	// before OccurrenceDate).
	ScheduledFor   time.Time
	OccurrenceDate time.Time
	AttemptCount   int
	LastAttemptAt  sql.NullTime
	NextRetryAt    sql.NullTime
	// ClaimedAt is set while a dispatch worker holds the entry. Recovery
	// requeues claims older than the claim timeout.
	ClaimedAt   sql.NullTime
	ChannelKind contact.ChannelKind
	Payload     Payload
	LastError   sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RetryEligible reports whether the entry may be attempted again under the
// given budget.
func (e *LedgerEntry) RetryEligible(maxAttempts int) bool {
	return e.AttemptCount < maxAttempts
}
