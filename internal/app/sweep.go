// internal/app/sweep.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/hebcal"
	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// SweepService is the periodic scan that turns upcoming anniversaries into
// ledger entries and rolls elapsed occurrences forward. A run is idempotent:
// entry creation is a conditional insert on the (memorial, contact, cycle
// year) key and the rollover is conditional on the prior occurrence, so
// re-running a sweep over the same state changes nothing.
type SweepService struct {
	memorials   memorial.Repository
	contacts    contact.Repository
	ledger      notification.Repository
	anniversary *AnniversaryService
	events      Publisher
	logger      *logrus.Logger
	leadDays    int
	graceDays   int
}

func NewSweepService(
	mr memorial.Repository,
	cr contact.Repository,
	lr notification.Repository,
	as *AnniversaryService,
	events Publisher,
	logger *logrus.Logger,
	leadDays, graceDays int,
) *SweepService {
	return &SweepService{
		memorials:   mr,
		contacts:    cr,
		ledger:      lr,
		anniversary: as,
		events:      events,
		logger:      logger,
		leadDays:    leadDays,
		graceDays:   graceDays,
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Run executes one sweep as of `now`. Failures on an individual memorial are
// logged and skipped; they never abort the sweep for the others.
func (s *SweepService) Run(ctx context.Context, now time.Time) error {
	today := dateOnly(now)
	graceStart := today.AddDate(0, 0, -s.graceDays)
	windowEnd := today.AddDate(0, 0, s.leadDays)

	due, err := s.memorials.ListDueForSweep(ctx, windowEnd)
	if err != nil {
		return fmt.Errorf("sweep: listing memorials: %w", err)
	}
	s.logger.WithField("count", len(due)).Debug("Sweep found memorials in window")

	for _, m := range due {
		if err := s.sweepMemorial(ctx, m, today, graceStart); err != nil {
			s.logger.WithFields(logrus.Fields{
				"memorial_id": m.ID,
				"error":       err,
			}).Error("Sweep failed for memorial, skipping")
		}
	}

	promoted, err := s.ledger.PromotePending(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep: promoting pending entries: %w", err)
	}
	if promoted > 0 {
		s.logger.WithField("count", promoted).Info("Promoted pending ledger entries to due")
	}
	return nil
}

func (s *SweepService) sweepMemorial(ctx context.Context, m *memorial.Memorial, today, graceStart time.Time) error {
	occurrence := dateOnly(m.NextOccurrence)

	// An occurrence that elapsed beyond the grace window gets no late
	// notification, but it must still roll forward so the record rejoins the
	// schedule after a long outage.
	if occurrence.Before(graceStart) {
		s.logger.WithFields(logrus.Fields{
			"memorial_id": m.ID,
			"occurrence":  occurrence.Format("2006-01-02"),
		}).Warn("Occurrence missed beyond the grace window, rolling forward without notifying")
		return s.rollOccurrence(ctx, m, today)
	}

	cycleYear := occurrence.Year()

	eligible, err := s.contacts.ListEligibleByMemorial(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("listing contacts: %w", err)
	}

	for _, c := range eligible {
		scheduledFor := occurrence.AddDate(0, 0, -c.LeadDays(s.leadDays))
		entry := &notification.LedgerEntry{
			MemorialID:     m.ID,
			ContactID:      c.ID,
			CycleYear:      cycleYear,
			Status:         notification.StatusPending,
			ScheduledFor:   scheduledFor,
			OccurrenceDate: occurrence,
			ChannelKind:    c.Kind,
			Payload:        renderPayload(m, occurrence),
		}
		if err := s.ledger.Create(ctx, entry); err != nil {
			if errors.Is(err, notification.ErrDuplicateEntry) {
				continue // already scheduled this cycle
			}
			s.logger.WithFields(logrus.Fields{
				"memorial_id": m.ID,
				"contact_id":  c.ID,
				"cycle_year":  cycleYear,
				"error":       err,
			}).Error("Failed to create ledger entry")
		}
	}

	if occurrence.Before(today) {
		return s.rollOccurrence(ctx, m, today)
	}
	return nil
}

// rollOccurrence advances an elapsed occurrence to the next one. A transient
// table-source failure leaves the memorial untouched for the next sweep; an
// unsupported date marks it stale so it stops churning.
func (s *SweepService) rollOccurrence(ctx context.Context, m *memorial.Memorial, today time.Time) error {
	next, err := s.anniversary.NextOccurrence(ctx, m.AnniversaryHebrew, today.AddDate(0, 0, -1))
	if err != nil {
		if errors.Is(err, hebcal.ErrUnsupportedDateRange) {
			if markErr := s.memorials.MarkStale(ctx, m.ID); markErr != nil {
				return fmt.Errorf("marking memorial stale: %w", markErr)
			}
			s.events.Publish(Event{
				Kind:       EventMemorialMarkedStale,
				MemorialID: m.ID,
				At:         today,
				Detail:     err.Error(),
			})
			return fmt.Errorf("occurrence out of range, memorial marked stale: %w", err)
		}
		return fmt.Errorf("computing next occurrence: %w", err)
	}

	if err := s.memorials.RollOccurrence(ctx, m.ID, m.NextOccurrence, next); err != nil {
		return fmt.Errorf("persisting occurrence rollover: %w", err)
	}
	s.events.Publish(Event{
		Kind:       EventOccurrenceRolledOver,
		MemorialID: m.ID,
		CycleYear:  next.Year(),
		At:         today,
		Detail:     next.Format("2006-01-02"),
	})
	m.NextOccurrence = next
	return nil
}
