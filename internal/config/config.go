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

	"compta/internal/settings"
)

var validBackends = []string{"xlsx", "memory"}

type Config struct {
	// Workbooks and settings
	DataDir      string
	SettingsFile string

	// Backend selection
	LedgerBackend string

	// Journal and mirror queue; empty disables both
	SQLiteDBPath string

	// AMQP; empty URL disables notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		DataDir:      getEnv("COMPTA_DATA_DIR", "./data"),
		SettingsFile: getEnv("COMPTA_SETTINGS_FILE", ""),

		LedgerBackend: getEnv("LEDGER_BACKEND", "xlsx"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "compta"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_months"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// SettingsPath is COMPTA_SETTINGS_FILE, or settings.json in the data directory.
func (c *Config) SettingsPath() string {
	if c.SettingsFile != "" {
		return c.SettingsFile
	}
	return filepath.Join(c.DataDir, settings.FileName)
}

// MirrorEnabled reports whether a Google spreadsheet is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	if c.LedgerBackend == "xlsx" && strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty when using xlsx backend")
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
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

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks what the mirror worker needs on top of Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if !c.MirrorEnabled() {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the mirror worker")
	}
	if c.SQLiteDBPath == "" && c.AMQPURL == "" {
		errors = append(errors, "either SQLITE_DB_PATH or AMQP_URL must be set for the mirror worker")
	}
	if c.LedgerBackend != "xlsx" {
		errors = append(errors, "the mirror worker reads workbooks and requires the xlsx backend")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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
