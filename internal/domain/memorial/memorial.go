package memorial

import (
	"database/sql"
	"time"

	"memorial_notification_service/internal/domain/hebcal"

	"github.com/google/uuid"
)

// Memorial is the record of a deceased individual whose anniversary is
// tracked. The record itself is owned by the surrounding record-management
// component; this service reads it and writes back the derived calendar
// fields.
type Memorial struct {
	ID                 uuid.UUID
	Name               string
	DeathDateGregorian time.Time
	// DeathDateHebrew is the converted death date, cached because conversion
	// may depend on an external table source.
	DeathDateHebrew hebcal.Date
	// AnniversaryHebrew is the recurring month/day observed every year. It is
	// fixed when the record is created and never recomputed from occurrences.
	AnniversaryHebrew hebcal.Date
	// NextOccurrence is the next Gregorian date on which the anniversary
	// falls. Always >= today; its Hebrew month/day equals AnniversaryHebrew.
	NextOccurrence time.Time
	// Stale marks a record whose occurrence could not be recomputed. It keeps
	// its last known NextOccurrence and is excluded from sweeps until the
	// death date is re-processed.
	Stale     bool
	DeletedAt sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deleted reports whether the memorial has been soft-deleted. Deleted
// memorials freeze scheduling but keep their ledger history.
func (m *Memorial) Deleted() bool { return m.DeletedAt.Valid }
