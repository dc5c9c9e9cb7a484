package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Collaborator backend
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP mutation bus; disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Projection
	HorizonMonths  int
	LookbackMonths int
	Timezone       string

	// Freshness
	RefreshInterval   time.Duration
	DedupeWindow      time.Duration
	EscalateAfter     time.Duration
	BackgroundRetries int

	// Cache
	CacheMaxEntries      int
	CacheMaxAge          time.Duration
	CacheCleanupInterval time.Duration

	SourceConcurrency int
	LogLevel          string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fluxo.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fluxo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dashboard_mutations"),

		HorizonMonths:  getEnvInt("PROJECTION_HORIZON_MONTHS", 6),
		LookbackMonths: getEnvInt("DETAIL_LOOKBACK_MONTHS", 12),
		Timezone:       getEnv("TIMEZONE", "America/Sao_Paulo"),

		RefreshInterval:   getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		DedupeWindow:      getEnvDuration("DEDUPE_WINDOW", 5*time.Second),
		EscalateAfter:     getEnvDuration("ESCALATE_AFTER", 30*time.Second),
		BackgroundRetries: getEnvInt("BACKGROUND_RETRIES", 1),

		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 64),
		CacheMaxAge:          getEnvDuration("CACHE_MAX_AGE", 24*time.Hour),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),

		SourceConcurrency: getEnvInt("SOURCE_CONCURRENCY", 4),
		LogLevel:          getEnv("LOG_LEVEL", "info"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_EXPORT_SHEET_NAME", "Projection"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file '%s' is not readable: %v", c.SeedFile, err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.HorizonMonths < 1 || c.HorizonMonths > 60 {
		errors = append(errors, fmt.Sprintf("invalid projection horizon %d: must be between 1 and 60 months", c.HorizonMonths))
	}
	if c.LookbackMonths < 0 {
		errors = append(errors, fmt.Sprintf("invalid look-back %d: must not be negative", c.LookbackMonths))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.RefreshInterval != 0 && c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 1 second", c.RefreshInterval))
	}
	if c.DedupeWindow < 0 {
		errors = append(errors, fmt.Sprintf("invalid dedupe window %v: must not be negative", c.DedupeWindow))
	}
	if c.EscalateAfter < 0 {
		errors = append(errors, fmt.Sprintf("invalid escalation threshold %v: must not be negative", c.EscalateAfter))
	}
	if c.BackgroundRetries < 0 || c.BackgroundRetries > 5 {
		errors = append(errors, fmt.Sprintf("invalid background retries %d: must be between 0 and 5", c.BackgroundRetries))
	}

	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.CacheMaxAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache max age %v: must not be negative", c.CacheMaxAge))
	}
	if c.SourceConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid source concurrency %d: must be at least 1", c.SourceConcurrency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
