package contact

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no contact matches. Callers use it to tell a
// definitively missing contact apart from a transient lookup failure.
var ErrNotFound = errors.New("contact not found")

// Repository defines persistence for Contact records.
type Repository interface {
	Create(ctx context.Context, c *Contact) error
	// GetByID returns ErrNotFound when the contact does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	// ListEligibleByMemorial returns active, non-opted-out contacts.
	ListEligibleByMemorial(ctx context.Context, memorialID uuid.UUID) ([]*Contact, error)
	// Deactivate clears the active flag, e.g. after a permanent channel
	// failure.
	Deactivate(ctx context.Context, id uuid.UUID) error
	OptOut(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, c *Contact) error
}
