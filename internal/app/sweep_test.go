package app

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/hebcal"
	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type sweepFixture struct {
	memorials *memMemorialRepo
	contacts  *memContactRepo
	ledger    *memLedgerRepo
	events    *capturingPublisher
	svc       *SweepService
}

func newSweepFixture(t *testing.T, leadDays, graceDays int) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		memorials: newMemMemorialRepo(),
		contacts:  newMemContactRepo(),
		ledger:    newMemLedgerRepo(),
		events:    &capturingPublisher{},
	}
	anniversary := NewAnniversaryService(newTestConverter(), 0)
	f.svc = NewSweepService(
		f.memorials, f.contacts, f.ledger,
		anniversary, f.events, quietLogger(),
		leadDays, graceDays,
	)
	return f
}

func (f *sweepFixture) addMemorial(t *testing.T, anniversary hebcal.Date, nextOccurrence time.Time) *memorial.Memorial {
	t.Helper()
	m := &memorial.Memorial{
		ID:                uuid.New(),
		Name:              "Chaim Cohen",
		AnniversaryHebrew: anniversary,
		NextOccurrence:    nextOccurrence,
	}
	require.NoError(t, f.memorials.Create(context.Background(), m))
	return m
}

func (f *sweepFixture) addContact(t *testing.T, memorialID uuid.UUID, mutate func(*contact.Contact)) *contact.Contact {
	t.Helper()
	c := &contact.Contact{
		ID:         uuid.New(),
		MemorialID: memorialID,
		Kind:       contact.KindEmail,
		Address:    "family@example.com",
		Active:     true,
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, f.contacts.Create(context.Background(), c))
	return c
}

func TestSweepCreatesEntriesForEligibleContacts(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)

	occurrence := day(2024, time.December, 26) // 25 Kislev 5785
	m := f.addMemorial(t, hebcal.Date{Year: 5785, Month: hebcal.Kislev, Day: 25}, occurrence)

	inWindow := f.addContact(t, m.ID, nil)
	shortLead := f.addContact(t, m.ID, func(c *contact.Contact) {
		c.Address = "reminder@example.com"
		c.LeadDaysOverride = sql.NullInt32{Int32: 3, Valid: true}
	})
	f.addContact(t, m.ID, func(c *contact.Contact) { c.OptedOut = true })

	now := day(2024, time.December, 20)
	require.NoError(t, f.svc.Run(ctx, now))

	entries, err := f.ledger.ListByMemorial(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2, "only eligible contacts are scheduled")

	// The default lead time opened the window on Dec 12, so that entry was
	// promoted to DUE in the same run. The 3-day override opens Dec 23 and is
	// still PENDING.
	byContact := map[uuid.UUID]*notification.LedgerEntry{}
	for _, e := range entries {
		byContact[e.ContactID] = e
	}
	defaultEntry := byContact[inWindow.ID]
	require.NotNil(t, defaultEntry)
	assert.Equal(t, notification.StatusDue, defaultEntry.Status)
	assert.True(t, defaultEntry.ScheduledFor.Equal(day(2024, time.December, 12)))
	assert.Equal(t, 2024, defaultEntry.CycleYear)
	assert.True(t, defaultEntry.OccurrenceDate.Equal(occurrence))
	assert.Contains(t, defaultEntry.Payload.Subject, "Chaim Cohen")
	assert.Contains(t, defaultEntry.Payload.Body, "25 Kislev")

	overrideEntry := byContact[shortLead.ID]
	require.NotNil(t, overrideEntry)
	assert.Equal(t, notification.StatusPending, overrideEntry.Status)
	assert.True(t, overrideEntry.ScheduledFor.Equal(day(2024, time.December, 23)))
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)

	m := f.addMemorial(t, hebcal.Date{Year: 5785, Month: hebcal.Kislev, Day: 25}, day(2024, time.December, 26))
	f.addContact(t, m.ID, nil)

	now := day(2024, time.December, 20)
	require.NoError(t, f.svc.Run(ctx, now))
	require.NoError(t, f.svc.Run(ctx, now))
	require.NoError(t, f.svc.Run(ctx, now.AddDate(0, 0, 1)))

	entries, err := f.ledger.ListByMemorial(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "repeated sweeps must not duplicate entries")
}

func TestSweepRollsElapsedOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)

	occurrence := day(2024, time.December, 26)
	m := f.addMemorial(t, hebcal.Date{Year: 5785, Month: hebcal.Kislev, Day: 25}, occurrence)
	f.addContact(t, m.ID, nil)

	// Two days past the occurrence, inside the grace window: the entry is
	// still created (late better than never) and the occurrence rolls forward.
	now := day(2024, time.December, 28)
	require.NoError(t, f.svc.Run(ctx, now))

	entries, err := f.ledger.ListByMemorial(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, notification.StatusDue, entries[0].Status)

	rolled, err := f.memorials.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, rolled.NextOccurrence.Equal(day(2025, time.December, 15)),
		"25 Kislev 5786, got %s", rolled.NextOccurrence.Format("2006-01-02"))

	events := f.events.byKind(EventOccurrenceRolledOver)
	require.Len(t, events, 1)
	assert.Equal(t, m.ID, events[0].MemorialID)
}

func TestSweepRolloverIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)

	m := f.addMemorial(t, hebcal.Date{Year: 5785, Month: hebcal.Kislev, Day: 25}, day(2024, time.December, 26))

	now := day(2024, time.December, 28)
	require.NoError(t, f.svc.Run(ctx, now))
	require.NoError(t, f.svc.Run(ctx, now))

	rolled, err := f.memorials.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, rolled.NextOccurrence.Equal(day(2025, time.December, 15)),
		"a second sweep must not double-advance, got %s", rolled.NextOccurrence.Format("2006-01-02"))
	assert.Len(t, f.events.byKind(EventOccurrenceRolledOver), 1)
}

func TestSweepRollsForwardBeyondGraceWindow(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)

	occurrence := day(2024, time.December, 26)
	m := f.addMemorial(t, hebcal.Date{Year: 5785, Month: hebcal.Kislev, Day: 25}, occurrence)
	f.addContact(t, m.ID, nil)

	// First sweep after a ten-day outage: far past the grace window, so the
	// missed cycle gets no late notification, but the record must rejoin the
	// schedule rather than stay stranded in the past.
	now := day(2025, time.January, 5)
	require.NoError(t, f.svc.Run(ctx, now))

	entries, err := f.ledger.ListByMemorial(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "missed cycle outside grace is not notified late")

	rolled, err := f.memorials.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, rolled.Stale)
	assert.True(t, rolled.NextOccurrence.Equal(day(2025, time.December, 15)),
		"got %s", rolled.NextOccurrence.Format("2006-01-02"))
	assert.Len(t, f.events.byKind(EventOccurrenceRolledOver), 1)

	// The next cycle is picked up normally once its window opens.
	require.NoError(t, f.svc.Run(ctx, day(2025, time.December, 10)))
	entries, err = f.ledger.ListByMemorial(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSweepMarksStaleWhenOutOfRange(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)
	conv := newTestConverter()

	// The last supported occurrence of this anniversary has passed; the next
	// one cannot be computed.
	anniversary := hebcal.Date{Year: 6000, Month: hebcal.Elul, Day: 1}
	lastOccurrence, err := conv.ToGregorian(ctx, anniversary)
	require.NoError(t, err)
	m := f.addMemorial(t, anniversary, lastOccurrence)

	require.NoError(t, f.svc.Run(ctx, lastOccurrence.AddDate(0, 0, 2)))

	stale, err := f.memorials.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.True(t, stale.NextOccurrence.Equal(lastOccurrence), "last known occurrence is kept")
	assert.Len(t, f.events.byKind(EventMemorialMarkedStale), 1)

	// A stale memorial is excluded from subsequent sweeps.
	require.NoError(t, f.svc.Run(ctx, lastOccurrence.AddDate(0, 0, 3)))
	assert.Len(t, f.events.byKind(EventMemorialMarkedStale), 1)
}

func TestSweepIsolatesPerMemorialFailures(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t, 14, 3)
	conv := newTestConverter()

	badAnniversary := hebcal.Date{Year: 6000, Month: hebcal.Elul, Day: 1}
	badOccurrence, err := conv.ToGregorian(ctx, badAnniversary)
	require.NoError(t, err)

	// Pin the healthy memorial to the same sweep window as the failing one.
	goodOccurrence := badOccurrence.AddDate(0, 0, 5)
	goodAnniversary, err := conv.FromGregorian(ctx, goodOccurrence)
	require.NoError(t, err)

	f.addMemorial(t, badAnniversary, badOccurrence)
	good := f.addMemorial(t, goodAnniversary, goodOccurrence)
	f.addContact(t, good.ID, nil)

	require.NoError(t, f.svc.Run(ctx, badOccurrence.AddDate(0, 0, 2)))

	entries, err := f.ledger.ListByMemorial(ctx, good.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "one failing memorial must not block the others")
}
