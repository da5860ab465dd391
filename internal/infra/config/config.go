package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	HTTPAddr    string
	// PublicBaseURL is the externally reachable origin used when building
	// links in outgoing emails.
	PublicBaseURL string
	JWTSecret     string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// FCMCredentialsFile is the service account JSON for push delivery.
	// When empty, push delivery is disabled.
	FCMCredentialsFile string

	CronSpecDispatch   string
	DispatchTimezone   string
	DispatchBatchSize  int
	DispatchBatchPause time.Duration
	EmailMaxAttempts   int
	EmailRetryBase     time.Duration

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables, and a
	// missing .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	var err error
	cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 25)
	if err != nil {
		return nil, err
	}
	cfg.DBConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.HTTPAddr = getEnvDefault("HTTP_ADDR", ":8080")
	cfg.PublicBaseURL = getEnvDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}
	cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is not set")
	}
	cfg.SMTPFromName = getEnvDefault("SMTP_FROM_NAME", "Community Activities")

	cfg.FCMCredentialsFile = os.Getenv("FCM_CREDENTIALS_FILE")

	cfg.CronSpecDispatch = getEnvDefault("CRON_SPEC_DISPATCH", "0 8 * * *") // 08:00 daily
	cfg.DispatchTimezone = getEnvDefault("DISPATCH_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(cfg.DispatchTimezone); err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_TIMEZONE %q: %w", cfg.DispatchTimezone, err)
	}

	cfg.DispatchBatchSize, err = getEnvInt("DISPATCH_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	cfg.DispatchBatchPause, err = getEnvDuration("DISPATCH_BATCH_PAUSE", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.EmailMaxAttempts, err = getEnvInt("EMAIL_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.EmailRetryBase, err = getEnvDuration("EMAIL_RETRY_BASE", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getEnvDefault("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnvDefault("ENVIRONMENT", "development"))

	return cfg, nil
}

// Location returns the dispatch reference timezone. Load has already
// validated the name.
func (c *AppConfig) Location() *time.Location {
	loc, _ := time.LoadLocation(c.DispatchTimezone)
	return loc
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
