package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"

	"github.com/google/uuid"
)

func emptyNullTime() sql.NullTime { return sql.NullTime{} }

// In-memory repository implementations with the same conditional-update
// semantics as the Postgres ones, so the services can be exercised without a
// database.

type memMemorialRepo struct {
	mu        sync.Mutex
	memorials map[uuid.UUID]*memorial.Memorial
}

func newMemMemorialRepo() *memMemorialRepo {
	return &memMemorialRepo{memorials: make(map[uuid.UUID]*memorial.Memorial)}
}

func (r *memMemorialRepo) Create(_ context.Context, m *memorial.Memorial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	r.memorials[m.ID] = &cp
	return nil
}

func (r *memMemorialRepo) GetByID(_ context.Context, id uuid.UUID) (*memorial.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memorials[id]
	if !ok {
		return nil, fmt.Errorf("memorial %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (r *memMemorialRepo) UpdateCalendarFields(_ context.Context, m *memorial.Memorial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.memorials[m.ID]
	if !ok {
		return fmt.Errorf("memorial %s not found", m.ID)
	}
	stored.DeathDateGregorian = m.DeathDateGregorian
	stored.DeathDateHebrew = m.DeathDateHebrew
	stored.AnniversaryHebrew = m.AnniversaryHebrew
	stored.NextOccurrence = m.NextOccurrence
	stored.Stale = false
	return nil
}

func (r *memMemorialRepo) ListDueForSweep(_ context.Context, windowEnd time.Time) ([]*memorial.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*memorial.Memorial
	for _, m := range r.memorials {
		if m.Deleted() || m.Stale || m.NextOccurrence.After(windowEnd) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memMemorialRepo) RollOccurrence(_ context.Context, id uuid.UUID, prior, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memorials[id]
	if !ok || !m.NextOccurrence.Equal(prior) {
		return fmt.Errorf("memorial %s not found at expected occurrence", id)
	}
	m.NextOccurrence = next
	return nil
}

func (r *memMemorialRepo) MarkStale(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memorials[id]
	if !ok {
		return fmt.Errorf("memorial %s not found", id)
	}
	m.Stale = true
	return nil
}

func (r *memMemorialRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memorials[id]
	if !ok {
		return fmt.Errorf("memorial %s not found", id)
	}
	m.DeletedAt.Valid = true
	m.DeletedAt.Time = time.Now()
	return nil
}

func (r *memMemorialRepo) ListUpcoming(_ context.Context, from, to time.Time) ([]*memorial.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*memorial.Memorial
	for _, m := range r.memorials {
		if m.Deleted() || m.NextOccurrence.Before(from) || m.NextOccurrence.After(to) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memMemorialRepo) ListStale(_ context.Context) ([]*memorial.Memorial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*memorial.Memorial
	for _, m := range r.memorials {
		if !m.Deleted() && m.Stale {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*contact.Contact

	// failGetByID, when set, is returned from every GetByID call. Tests use
	// it to simulate a flaky lookup backend.
	failGetByID error
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: make(map[uuid.UUID]*contact.Contact)}
}

func (r *memContactRepo) Create(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id uuid.UUID) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGetByID != nil {
		return nil, r.failGetByID
	}
	c, ok := r.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", id, contact.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *memContactRepo) ListEligibleByMemorial(_ context.Context, memorialID uuid.UUID) ([]*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contact.Contact
	for _, c := range r.contacts {
		if c.MemorialID == memorialID && c.Eligible() {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memContactRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s not found", id)
	}
	c.Active = false
	return nil
}

func (r *memContactRepo) OptOut(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s not found", id)
	}
	c.OptedOut = true
	return nil
}

func (r *memContactRepo) Update(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contacts[c.ID]; !ok {
		return fmt.Errorf("contact %s not found", c.ID)
	}
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

type memLedgerRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*notification.LedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{entries: make(map[uuid.UUID]*notification.LedgerEntry)}
}

func (r *memLedgerRepo) Create(_ context.Context, e *notification.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.MemorialID == e.MemorialID && existing.ContactID == e.ContactID &&
			existing.CycleYear == e.CycleYear && existing.Status != notification.StatusCancelled {
			return notification.ErrDuplicateEntry
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memLedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*notification.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, notification.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memLedgerRepo) GetByKey(_ context.Context, memorialID, contactID uuid.UUID, cycleYear int) (*notification.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.MemorialID == memorialID && e.ContactID == contactID &&
			e.CycleYear == cycleYear && e.Status != notification.StatusCancelled {
			cp := *e
			return &cp, nil
		}
	}
	return nil, notification.ErrEntryNotFound
}

func (r *memLedgerRepo) ListByMemorial(_ context.Context, memorialID uuid.UUID) ([]*notification.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.LedgerEntry
	for _, e := range r.entries {
		if e.MemorialID == memorialID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) PromotePending(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Status == notification.StatusPending && !e.ScheduledFor.After(now) {
			e.Status = notification.StatusDue
			n++
		}
	}
	return n, nil
}

func (r *memLedgerRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]*notification.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.LedgerEntry
	for _, e := range r.entries {
		if len(out) >= limit {
			break
		}
		if e.Status != notification.StatusDue {
			continue
		}
		if e.NextRetryAt.Valid && e.NextRetryAt.Time.After(now) {
			continue
		}
		e.Status = notification.StatusSending
		e.ClaimedAt.Valid = true
		e.ClaimedAt.Time = now
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memLedgerRepo) RequeueStaleClaims(_ context.Context, claimedBefore time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Status == notification.StatusSending && e.ClaimedAt.Valid && e.ClaimedAt.Time.Before(claimedBefore) {
			e.Status = notification.StatusDue
			e.ClaimedAt = emptyNullTime()
			n++
		}
	}
	return n, nil
}

func (r *memLedgerRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.fromSending(id, func(e *notification.LedgerEntry) {
		e.Status = notification.StatusSent
		e.AttemptCount++
		e.LastAttemptAt.Valid = true
		e.LastAttemptAt.Time = at
		e.ClaimedAt = emptyNullTime()
	})
}

func (r *memLedgerRepo) MarkRetry(_ context.Context, id uuid.UUID, at, nextRetry time.Time, attempt int, detail string) error {
	return r.fromSending(id, func(e *notification.LedgerEntry) {
		e.Status = notification.StatusDue
		e.AttemptCount = attempt
		e.LastAttemptAt.Valid = true
		e.LastAttemptAt.Time = at
		e.NextRetryAt.Valid = true
		e.NextRetryAt.Time = nextRetry
		e.ClaimedAt = emptyNullTime()
		e.LastError.Valid = true
		e.LastError.String = detail
	})
}

func (r *memLedgerRepo) MarkFailed(_ context.Context, id uuid.UUID, at time.Time, attempt int, detail string) error {
	return r.fromSending(id, func(e *notification.LedgerEntry) {
		e.Status = notification.StatusFailed
		e.AttemptCount = attempt
		e.LastAttemptAt.Valid = true
		e.LastAttemptAt.Time = at
		e.ClaimedAt = emptyNullTime()
		e.LastError.Valid = true
		e.LastError.String = detail
	})
}

func (r *memLedgerRepo) fromSending(id uuid.UUID, apply func(*notification.LedgerEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != notification.StatusSending {
		return notification.ErrStaleStatus
	}
	apply(e)
	return nil
}

func (r *memLedgerRepo) CancelByMemorial(_ context.Context, memorialID uuid.UUID) (int, error) {
	return r.cancelWhere(func(e *notification.LedgerEntry) bool { return e.MemorialID == memorialID })
}

func (r *memLedgerRepo) CancelByContact(_ context.Context, contactID uuid.UUID) (int, error) {
	return r.cancelWhere(func(e *notification.LedgerEntry) bool { return e.ContactID == contactID })
}

func (r *memLedgerRepo) cancelWhere(match func(*notification.LedgerEntry) bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if match(e) && !e.Status.Terminal() {
			e.Status = notification.StatusCancelled
			e.ClaimedAt = emptyNullTime()
			n++
		}
	}
	return n, nil
}

func (r *memLedgerRepo) CancelByID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status.Terminal() {
		return notification.ErrStaleStatus
	}
	e.Status = notification.StatusCancelled
	e.ClaimedAt = emptyNullTime()
	return nil
}

func (r *memLedgerRepo) byStatus(status notification.Status) []*notification.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.LedgerEntry
	for _, e := range r.entries {
		if e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// recordingSender is a channel.Sender with a scripted error and a log of every
// address it attempted.
type recordingSender struct {
	kind contact.ChannelKind
	err  error

	mu    sync.Mutex
	sends []string
}

func (s *recordingSender) Kind() contact.ChannelKind { return s.kind }

func (s *recordingSender) Send(_ context.Context, address string, _ notification.Payload) error {
	s.mu.Lock()
	s.sends = append(s.sends, address)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends...)
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *capturingPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *capturingPublisher) byKind(kind EventKind) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
