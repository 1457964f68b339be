package memorial

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for Memorial records.
type Repository interface {
	Create(ctx context.Context, m *Memorial) error
	GetByID(ctx context.Context, id uuid.UUID) (*Memorial, error)
	// UpdateCalendarFields persists the derived Hebrew fields and next
	// occurrence, clearing the stale flag.
	UpdateCalendarFields(ctx context.Context, m *Memorial) error
	// ListDueForSweep returns non-deleted, non-stale memorials whose next
	// occurrence falls at or before windowEnd, including occurrences already
	// in the past. Elapsed occurrences must keep surfacing here until they
	// are rolled forward, however long ago they passed; otherwise a long
	// outage would strand the record outside every future sweep.
	ListDueForSweep(ctx context.Context, windowEnd time.Time) ([]*Memorial, error)
	// RollOccurrence advances NextOccurrence from the expected prior value to
	// next. The update is conditional on the stored value still matching
	// prior, so concurrent sweeps cannot double-advance.
	RollOccurrence(ctx context.Context, id uuid.UUID, prior, next time.Time) error
	MarkStale(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// ListUpcoming returns non-deleted memorials with occurrences inside
	// [from, to], ordered by occurrence. Used by the admin surface.
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*Memorial, error)
	ListStale(ctx context.Context) ([]*Memorial, error)
}
