package contact

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ChannelKind selects the delivery channel for a contact.
type ChannelKind string

const (
	KindEmail        ChannelKind = "EMAIL"
	KindGroupMessage ChannelKind = "GROUP_MESSAGE"
)

// Contact is a notification recipient attached to a memorial. For KindEmail
// the Address is an email address; for KindGroupMessage it is the
// pre-provisioned group chat identifier.
type Contact struct {
	ID         uuid.UUID
	MemorialID uuid.UUID
	Kind       ChannelKind
	Address    string
	Active     bool
	OptedOut   bool
	// LeadDaysOverride replaces the global lead time for this contact when
	// set (0..30 days, per-recipient reminder preference).
	LeadDaysOverride sql.NullInt32
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Eligible reports whether the contact may receive notifications.
func (c *Contact) Eligible() bool { return c.Active && !c.OptedOut }

// LeadDays resolves the effective lead time given the global default.
func (c *Contact) LeadDays(defaultDays int) int {
	if c.LeadDaysOverride.Valid {
		return int(c.LeadDaysOverride.Int32)
	}
	return defaultDays
}
