package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"memorial_notification_service/internal/app"
	"memorial_notification_service/internal/domain/channel"
	"memorial_notification_service/internal/domain/hebcal"
	"memorial_notification_service/internal/infra/config"
	idb "memorial_notification_service/internal/infra/database"
	"memorial_notification_service/internal/infra/email"
	"memorial_notification_service/internal/infra/hebcalapi"
	"memorial_notification_service/internal/infra/logger"
	"memorial_notification_service/internal/infra/scheduler"
	"memorial_notification_service/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Environment)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Repositories
	memorialRepo := idb.NewPostgresMemorialRepository(db)
	contactRepo := idb.NewPostgresContactRepository(db)
	ledgerRepo := idb.NewPostgresLedgerRepository(db)

	// Calendar conversion: live HebCal tables, arithmetic fallback, cached.
	tableSource := hebcalapi.NewCachedSource(
		hebcalapi.NewRemoteSource(cfg.HebcalBaseURL),
		hebcal.NewArithmeticSource(),
		log,
	)
	converter := hebcal.NewConverter(tableSource)
	anniversaryService := app.NewAnniversaryService(converter, cfg.AnniversaryOffsetMo)

	// Telegram bot for the group channel and the admin commands.
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			log.WithField("error", err).Error("Telegram bot error")
		},
	})
	if err != nil {
		log.Fatalf("Could not create Telegram bot: %v", err)
	}

	senders := []channel.Sender{
		email.NewClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
		telegram.NewGroupChannel(bot),
	}

	events := app.NewLogPublisher(log)

	sweepService := app.NewSweepService(
		memorialRepo, contactRepo, ledgerRepo,
		anniversaryService, events, log,
		cfg.LeadDays, cfg.GraceDays,
	)
	dispatchService := app.NewDispatchService(
		ledgerRepo, contactRepo, senders, events, log,
		cfg.MaxAttempts, cfg.RetryBase, cfg.RetryMaxInterval,
		cfg.DispatchBatchSize, cfg.DispatchWorkers, cfg.ClaimTimeout,
	)
	lifecycleService := app.NewLifecycleService(
		memorialRepo, contactRepo, ledgerRepo,
		anniversaryService, events, log,
	)
	adminService := app.NewAdminService(memorialRepo, ledgerRepo, cfg.AdminTelegramID)

	telegram.RegisterAdminHandlers(bot, adminService, lifecycleService)
	log.Info("Admin command handlers registered")

	notifScheduler := scheduler.NewNotificationScheduler(
		sweepService, dispatchService, log,
		cfg.CronSpecSweep, cfg.CronSpecDispatch, cfg.CronSpecRecovery,
	)
	notifScheduler.Start()

	log.Info("Application setup complete, starting bot")
	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application")
	notifScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully")
}
