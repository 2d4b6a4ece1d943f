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
	TelegramToken       string
	DatabaseURL         string
	LogLevel            string
	Environment         string
	HTTPPort            string
	ContactInfo         string
	SessionTTL          time.Duration
	AuthCacheTTL        time.Duration
	RequestTimeout      time.Duration
	CronSpecAuthRefresh string
	TimeOffsetHours     int
}

// Load reads configuration from environment variables and a .env file (if
// present). Missing platform credentials or store coordinates are fatal;
// everything else has a default.
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables already set in the
	// environment, and a missing .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.HTTPPort = os.Getenv("HTTP_PORT")
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	cfg.ContactInfo = os.Getenv("CONTACT_INFO")
	if cfg.ContactInfo == "" {
		cfg.ContactInfo = "如有問題請聯絡教務處"
	}

	var err error
	cfg.SessionTTL, err = durationEnv("SESSION_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.AuthCacheTTL, err = durationEnv("AUTH_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.CronSpecAuthRefresh = os.Getenv("CRON_SPEC_AUTH_REFRESH")
	if cfg.CronSpecAuthRefresh == "" {
		cfg.CronSpecAuthRefresh = "@every 5m"
	}

	offsetStr := os.Getenv("TIME_OFFSET_HOURS")
	if offsetStr == "" {
		// Attendance timestamps are recorded in the school's civil time.
		cfg.TimeOffsetHours = 8
	} else {
		cfg.TimeOffsetHours, err = strconv.Atoi(offsetStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TIME_OFFSET_HOURS: %w", err)
		}
	}

	return cfg, nil
}

// TimeLocation returns the fixed-offset zone used for ledger timestamps.
func (c *AppConfig) TimeLocation() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.TimeOffsetHours), c.TimeOffsetHours*3600)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
