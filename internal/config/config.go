package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Admin credential (single tenant, static)
	AdminUsername string
	AdminPassword string

	// Session tokens
	JWTSecret string
	JWTExpiry time.Duration

	// Database
	SQLiteDBPath string

	// Blob storage
	BlobBackend   string // "local" or "drive"
	BlobDataDir   string
	PublicBaseURL string // base URL for locally served uploads
	DriveFolderID string

	// AMQP (optional; empty disables the export pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	ExportBatchSize int
	ExportInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/khata.db"),

		BlobBackend:   getEnv("BLOB_BACKEND", "local"),
		BlobDataDir:   getEnv("BLOB_DATA_DIR", "./data/uploads"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8081"),
		DriveFolderID: getEnv("DRIVE_FOLDER_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "khata"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_records"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Ledger"),

		ExportBatchSize: getEnvInt("EXPORT_BATCH_SIZE", 10),
		ExportInterval:  getEnvDuration("EXPORT_INTERVAL", 30*time.Second),
	}
}

// Validate checks the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AdminUsername == "" {
		errs = append(errs, "admin username cannot be empty")
	}
	if c.AdminPassword == "" {
		errs = append(errs, "ADMIN_PASSWORD must be set")
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET must be set")
	}
	if c.JWTExpiry < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid JWT expiry %v: must be at least 1 minute", c.JWTExpiry))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	switch c.BlobBackend {
	case "local":
		if c.BlobDataDir == "" {
			errs = append(errs, "blob data directory cannot be empty when using local backend")
		}
		if c.PublicBaseURL == "" {
			errs = append(errs, "public base URL cannot be empty when using local backend")
		} else if _, err := url.Parse(c.PublicBaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid public base URL '%s': %v", c.PublicBaseURL, err))
		}
	case "drive":
		if c.DriveFolderID == "" {
			errs = append(errs, "DRIVE_FOLDER_ID is required when using drive backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid blob backend '%s': must be one of [local drive]", c.BlobBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}

	if c.ExportInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
