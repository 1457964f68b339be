package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL     string
	TelegramToken   string
	AdminTelegramID int64

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	HebcalBaseURL string

	LogLevel    string
	Environment string

	CronSpecSweep    string
	CronSpecDispatch string
	CronSpecRecovery string

	LeadDays            int
	GraceDays           int
	MaxAttempts         int
	RetryBase           time.Duration
	RetryMaxInterval    time.Duration
	ClaimTimeout        time.Duration
	DispatchWorkers     int
	DispatchBatchSize   int
	AnniversaryOffsetMo int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	if cfg.DBMaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = durationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxIdleTime, err = durationEnv("DB_CONN_MAX_IDLE_TIME", time.Minute); err != nil {
		return nil, err
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}
	cfg.SMTPPort, err = intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is not set")
	}

	cfg.HebcalBaseURL = os.Getenv("HEBCAL_BASE_URL")
	if cfg.HebcalBaseURL == "" {
		cfg.HebcalBaseURL = "https://www.hebcal.com/converter"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecSweep = os.Getenv("CRON_SPEC_SWEEP")
	if cfg.CronSpecSweep == "" {
		cfg.CronSpecSweep = "0 6 * * *" // Daily 06:00
	}
	cfg.CronSpecDispatch = os.Getenv("CRON_SPEC_DISPATCH")
	if cfg.CronSpecDispatch == "" {
		cfg.CronSpecDispatch = "*/5 * * * *"
	}
	cfg.CronSpecRecovery = os.Getenv("CRON_SPEC_RECOVERY")
	if cfg.CronSpecRecovery == "" {
		cfg.CronSpecRecovery = "*/15 * * * *"
	}

	if cfg.LeadDays, err = intEnv("LEAD_DAYS", 14); err != nil {
		return nil, err
	}
	if cfg.GraceDays, err = intEnv("GRACE_DAYS", 3); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = intEnv("MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.DispatchWorkers, err = intEnv("DISPATCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.DispatchBatchSize, err = intEnv("DISPATCH_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.AnniversaryOffsetMo, err = intEnv("YAHRZEIT_OFFSET_MONTHS", 0); err != nil {
		return nil, err
	}
	if cfg.RetryBase, err = durationEnv("RETRY_BASE", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryMaxInterval, err = durationEnv("RETRY_MAX_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ClaimTimeout, err = durationEnv("CLAIM_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
