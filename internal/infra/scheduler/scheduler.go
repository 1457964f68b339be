package scheduler

import (
	"context"
	"time"

	"memorial_notification_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotificationScheduler owns the three periodic jobs: the daily anniversary
// sweep, the frequent dispatch drain, and the slower recovery pass. The sweep
// runs with SkipIfStillRunning so overlapping triggers cannot race; sweep and
// dispatch are individually idempotent, so a missed or doubled trigger is
// harmless.
type NotificationScheduler struct {
	cronEngine       *cron.Cron
	sweepService     *app.SweepService
	dispatchService  *app.DispatchService
	logger           *logrus.Logger
	cronSpecSweep    string
	cronSpecDispatch string
	cronSpecRecovery string
}

func NewNotificationScheduler(
	sweepService *app.SweepService,
	dispatchService *app.DispatchService,
	logger *logrus.Logger,
	cronSpecSweep string, // e.g., "0 6 * * *" (06:00 daily)
	cronSpecDispatch string, // e.g., "*/5 * * * *" (every 5 minutes)
	cronSpecRecovery string, // e.g., "*/15 * * * *" (every 15 minutes)
) *NotificationScheduler {
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		sweepService:     sweepService,
		dispatchService:  dispatchService,
		logger:           logger,
		cronSpecSweep:    cronSpecSweep,
		cronSpecDispatch: cronSpecDispatch,
		cronSpecRecovery: cronSpecRecovery,
	}
}

func (s *NotificationScheduler) Start() {
	s.logger.Info("Starting notification scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpecSweep, func() {
		s.logger.Info("Cron job triggered: anniversary sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.sweepService.Run(ctx, time.Now()); err != nil {
			s.logger.WithField("error", err).Error("Anniversary sweep failed")
		}
	})
	if err != nil {
		s.logger.WithField("error", err).Fatal("Could not add sweep cron job")
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecDispatch, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := s.dispatchService.Run(ctx, time.Now()); err != nil {
			s.logger.WithField("error", err).Error("Dispatch run failed")
		}
	})
	if err != nil {
		s.logger.WithField("error", err).Fatal("Could not add dispatch cron job")
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecRecovery, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.dispatchService.Recover(ctx, time.Now()); err != nil {
			s.logger.WithField("error", err).Error("Recovery pass failed")
		}
	})
	if err != nil {
		s.logger.WithField("error", err).Fatal("Could not add recovery cron job")
	}

	s.cronEngine.Start()
	s.logger.Info("Notification scheduler started with jobs")
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler")
	ctx := s.cronEngine.Stop() // Waits for running jobs to finish.
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped")
}
