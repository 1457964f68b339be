// internal/app/lifecycle.go
package app

import (
	"context"
	"fmt"
	"time"

	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LifecycleService is the inbound boundary from the record-management
// component. It reacts to record changes: computing calendar fields on
// creation and death-date changes, and synchronously cancelling ledger
// entries on deletion and deactivation so no send can race a removal.
type LifecycleService struct {
	memorials   memorial.Repository
	contacts    contact.Repository
	ledger      notification.Repository
	anniversary *AnniversaryService
	events      Publisher
	logger      *logrus.Logger
}

func NewLifecycleService(
	mr memorial.Repository,
	cr contact.Repository,
	lr notification.Repository,
	as *AnniversaryService,
	events Publisher,
	logger *logrus.Logger,
) *LifecycleService {
	return &LifecycleService{
		memorials:   mr,
		contacts:    cr,
		ledger:      lr,
		anniversary: as,
		events:      events,
		logger:      logger,
	}
}

// computeCalendarFields fills the derived Hebrew fields and next occurrence
// for the given death date. An occurrence falling today is still valid.
func (s *LifecycleService) computeCalendarFields(ctx context.Context, m *memorial.Memorial, now time.Time) error {
	death, anniversary, err := s.anniversary.InitialAnniversary(ctx, m.DeathDateGregorian)
	if err != nil {
		return fmt.Errorf("computing anniversary for memorial %s: %w", m.ID, err)
	}
	next, err := s.anniversary.NextOccurrence(ctx, anniversary, dateOnly(now).AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("computing next occurrence for memorial %s: %w", m.ID, err)
	}
	m.DeathDateHebrew = death
	m.AnniversaryHebrew = anniversary
	m.NextOccurrence = next
	m.Stale = false
	return nil
}

// OnMemorialCreated registers a new memorial: the Hebrew death date and the
// recurring anniversary are fixed here, once.
func (s *LifecycleService) OnMemorialCreated(ctx context.Context, m *memorial.Memorial) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := s.computeCalendarFields(ctx, m, time.Now()); err != nil {
		return err
	}
	if err := s.memorials.Create(ctx, m); err != nil {
		return fmt.Errorf("creating memorial: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"memorial_id":     m.ID,
		"anniversary":     m.AnniversaryHebrew.String(),
		"next_occurrence": m.NextOccurrence.Format("2006-01-02"),
	}).Info("Memorial registered")
	return nil
}

// OnDeathDateChanged recomputes everything derived from the death date. The
// anniversary is re-fixed from the new date, never from past occurrences.
func (s *LifecycleService) OnDeathDateChanged(ctx context.Context, memorialID uuid.UUID, newDeathDate time.Time) error {
	m, err := s.memorials.GetByID(ctx, memorialID)
	if err != nil {
		return fmt.Errorf("loading memorial %s: %w", memorialID, err)
	}
	m.DeathDateGregorian = newDeathDate
	if err := s.computeCalendarFields(ctx, m, time.Now()); err != nil {
		return err
	}
	if err := s.memorials.UpdateCalendarFields(ctx, m); err != nil {
		return fmt.Errorf("persisting recomputed calendar fields: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"memorial_id":     m.ID,
		"next_occurrence": m.NextOccurrence.Format("2006-01-02"),
	}).Info("Memorial death date changed, calendar fields recomputed")
	return nil
}

// OnMemorialDeleted soft-deletes the memorial and cancels its open ledger
// entries in the same call, so nothing is sent after the deletion.
func (s *LifecycleService) OnMemorialDeleted(ctx context.Context, memorialID uuid.UUID) error {
	if err := s.memorials.SoftDelete(ctx, memorialID); err != nil {
		return fmt.Errorf("soft-deleting memorial %s: %w", memorialID, err)
	}
	cancelled, err := s.ledger.CancelByMemorial(ctx, memorialID)
	if err != nil {
		return fmt.Errorf("cancelling ledger entries for memorial %s: %w", memorialID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"memorial_id": memorialID,
		"cancelled":   cancelled,
	}).Info("Memorial deleted, open ledger entries cancelled")
	return nil
}

// RegisterContact attaches a recipient to a memorial.
func (s *LifecycleService) RegisterContact(ctx context.Context, c *contact.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return fmt.Errorf("creating contact: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"contact_id":  c.ID,
		"memorial_id": c.MemorialID,
		"kind":        c.Kind,
	}).Info("Contact registered")
	return nil
}

// OnContactDeactivated clears the contact's active flag and cancels its open
// entries synchronously.
func (s *LifecycleService) OnContactDeactivated(ctx context.Context, contactID uuid.UUID) error {
	if err := s.contacts.Deactivate(ctx, contactID); err != nil {
		return fmt.Errorf("deactivating contact %s: %w", contactID, err)
	}
	return s.cancelForContact(ctx, contactID, "deactivated")
}

// OnContactOptedOut records an opt-out and cancels open entries.
func (s *LifecycleService) OnContactOptedOut(ctx context.Context, contactID uuid.UUID) error {
	if err := s.contacts.OptOut(ctx, contactID); err != nil {
		return fmt.Errorf("opting out contact %s: %w", contactID, err)
	}
	return s.cancelForContact(ctx, contactID, "opted out")
}

func (s *LifecycleService) cancelForContact(ctx context.Context, contactID uuid.UUID, reason string) error {
	cancelled, err := s.ledger.CancelByContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("cancelling ledger entries for contact %s: %w", contactID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"contact_id": contactID,
		"cancelled":  cancelled,
		"reason":     reason,
	}).Info("Contact withdrawn, open ledger entries cancelled")
	return nil
}
