// internal/app/dispatch.go
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"memorial_notification_service/internal/domain/channel"
	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// DispatchService drains due ledger entries through the configured channels.
// Entries are claimed atomically before any send, which is what guarantees a
// single delivery per entry under any number of concurrent workers.
type DispatchService struct {
	ledger   notification.Repository
	contacts contact.Repository
	channels map[contact.ChannelKind]channel.Sender
	events   Publisher
	logger   *logrus.Logger

	maxAttempts  int
	retryBase    time.Duration
	retryMax     time.Duration
	batchSize    int
	workers      int
	claimTimeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewDispatchService(
	lr notification.Repository,
	cr contact.Repository,
	senders []channel.Sender,
	events Publisher,
	logger *logrus.Logger,
	maxAttempts int,
	retryBase, retryMax time.Duration,
	batchSize, workers int,
	claimTimeout time.Duration,
) *DispatchService {
	channels := make(map[contact.ChannelKind]channel.Sender, len(senders))
	for _, s := range senders {
		channels[s.Kind()] = s
	}
	// A zero worker count would leave claimed entries with nobody to drain
	// the queue; degrade to serial processing instead.
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &DispatchService{
		ledger:       lr,
		contacts:     cr,
		channels:     channels,
		events:       events,
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryBase:    retryBase,
		retryMax:     retryMax,
		batchSize:    batchSize,
		workers:      workers,
		claimTimeout: claimTimeout,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run claims one batch of due entries and fans it out to the worker pool.
func (s *DispatchService) Run(ctx context.Context, now time.Time) error {
	claimed, err := s.ledger.ClaimDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("dispatch: claiming due entries: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}
	s.logger.WithField("count", len(claimed)).Info("Dispatching claimed ledger entries")

	workers := s.workers
	if workers > len(claimed) {
		workers = len(claimed)
	}
	queue := make(chan *notification.LedgerEntry)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range queue {
				s.process(ctx, entry, now)
			}
		}()
	}
	for _, entry := range claimed {
		queue <- entry
	}
	close(queue)
	wg.Wait()
	return nil
}

// Recover requeues claims held longer than the claim timeout (a worker died
// between claim and result) and promotes pending entries whose window opened.
func (s *DispatchService) Recover(ctx context.Context, now time.Time) error {
	requeued, err := s.ledger.RequeueStaleClaims(ctx, now.Add(-s.claimTimeout))
	if err != nil {
		return fmt.Errorf("recovery: requeueing stale claims: %w", err)
	}
	if requeued > 0 {
		s.logger.WithField("count", requeued).Warn("Requeued stale in-flight ledger entries")
	}
	promoted, err := s.ledger.PromotePending(ctx, now)
	if err != nil {
		return fmt.Errorf("recovery: promoting pending entries: %w", err)
	}
	if promoted > 0 {
		s.logger.WithField("count", promoted).Info("Promoted pending ledger entries to due")
	}
	return nil
}

func (s *DispatchService) process(ctx context.Context, entry *notification.LedgerEntry, now time.Time) {
	log := s.logger.WithFields(logrus.Fields{
		"entry_id":    entry.ID,
		"memorial_id": entry.MemorialID,
		"contact_id":  entry.ContactID,
		"cycle_year":  entry.CycleYear,
	})

	recipient, err := s.contacts.GetByID(ctx, entry.ContactID)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			s.fail(ctx, entry, now, fmt.Sprintf("contact lookup failed: %v", err), log)
			return
		}
		// A transient lookup failure must not burn the entry. Leave the claim
		// in place; the recovery pass requeues it after the claim timeout.
		log.WithField("error", err).Error("Contact lookup failed, leaving claim for recovery")
		return
	}
	if !recipient.Eligible() {
		// Opted out or deactivated after the claim; cancel instead of sending.
		if err := s.ledger.CancelByID(ctx, entry.ID); err != nil {
			log.WithField("error", err).Error("Failed to cancel entry for ineligible contact")
		} else {
			log.Info("Cancelled entry, contact no longer eligible")
		}
		return
	}

	sender, ok := s.channels[entry.ChannelKind]
	if !ok {
		s.fail(ctx, entry, now, fmt.Sprintf("no channel for kind %s", entry.ChannelKind), log)
		return
	}

	sendErr := sender.Send(ctx, recipient.Address, entry.Payload)
	attempt := entry.AttemptCount + 1

	switch {
	case sendErr == nil:
		if err := s.ledger.MarkSent(ctx, entry.ID, now); err != nil {
			log.WithField("error", err).Error("Delivery succeeded but marking sent failed")
			return
		}
		log.Info("Notification sent")
		s.events.Publish(Event{
			Kind:       EventNotificationSent,
			MemorialID: entry.MemorialID,
			ContactID:  entry.ContactID,
			CycleYear:  entry.CycleYear,
			At:         now,
		})

	case channel.IsPermanent(sendErr):
		s.fail(ctx, entry, now, sendErr.Error(), log)
		// A permanently failing address must not be scheduled again.
		if err := s.contacts.Deactivate(ctx, entry.ContactID); err != nil {
			log.WithField("error", err).Error("Failed to deactivate contact after permanent failure")
		} else {
			s.events.Publish(Event{
				Kind:       EventContactDeactivated,
				MemorialID: entry.MemorialID,
				ContactID:  entry.ContactID,
				At:         now,
				Detail:     sendErr.Error(),
			})
		}

	default: // transient
		if attempt >= s.maxAttempts {
			s.fail(ctx, entry, now, fmt.Sprintf("retry budget exhausted: %v", sendErr), log)
			return
		}
		nextRetry := now.Add(s.backoff(attempt))
		if err := s.ledger.MarkRetry(ctx, entry.ID, now, nextRetry, attempt, sendErr.Error()); err != nil {
			if !errors.Is(err, notification.ErrStaleStatus) {
				log.WithField("error", err).Error("Failed to schedule retry")
			}
			return
		}
		log.WithFields(logrus.Fields{
			"attempt":    attempt,
			"next_retry": nextRetry.Format(time.RFC3339),
		}).Warn("Transient send failure, retry scheduled")
	}
}

func (s *DispatchService) fail(ctx context.Context, entry *notification.LedgerEntry, now time.Time, detail string, log *logrus.Entry) {
	if err := s.ledger.MarkFailed(ctx, entry.ID, now, entry.AttemptCount+1, detail); err != nil {
		if !errors.Is(err, notification.ErrStaleStatus) {
			log.WithField("error", err).Error("Failed to mark entry failed")
		}
		return
	}
	log.WithField("detail", detail).Error("Notification failed terminally")
	s.events.Publish(Event{
		Kind:       EventNotificationFailedTerminal,
		MemorialID: entry.MemorialID,
		ContactID:  entry.ContactID,
		CycleYear:  entry.CycleYear,
		At:         now,
		Detail:     detail,
	})
}

// backoff is exponential in the attempt number, capped, with +-20% jitter so
// retries from one failed batch spread out.
func (s *DispatchService) backoff(attempt int) time.Duration {
	d := s.retryBase
	for i := 1; i < attempt && d < s.retryMax; i++ {
		d *= 2
	}
	if d > s.retryMax {
		d = s.retryMax
	}
	s.mu.Lock()
	jitter := 0.8 + 0.4*s.rng.Float64()
	s.mu.Unlock()
	return time.Duration(float64(d) * jitter)
}
