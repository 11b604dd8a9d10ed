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
	Port               string
	Host               string
	ClientBuild        string
	RateLimitPerMinute int

	// Session store
	DataFile         string
	CacheFile        string
	ReloadTimeout    time.Duration
	WriteLockTimeout time.Duration
	ViewCacheTTL     time.Duration

	// Users
	SQLiteDBPath    string
	JWTSecretKey    string
	JWTIssuer       string
	JWTTokenExpires time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	PrecomputeInterval time.Duration

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleWeeklySheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		Host:               getEnv("HOST", "0.0.0.0"),
		ClientBuild:        getEnv("CLIENT_BUILD", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataFile:         getEnv("DATA_FILE", "./data/doordash_sessions.json"),
		CacheFile:        getEnv("CACHE_FILE", "./data/cache.json"),
		ReloadTimeout:    getEnvDuration("RELOAD_TIMEOUT", 5*time.Second),
		WriteLockTimeout: getEnvDuration("WRITE_LOCK_TIMEOUT", 3*time.Second),
		ViewCacheTTL:     getEnvDuration("VIEW_CACHE_TTL", 10*time.Minute),

		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/users.db"),
		JWTSecretKey:    getEnv("JWT_SECRET_KEY", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "doordashboard"),
		JWTTokenExpires: getEnvDuration("JWT_TOKEN_EXPIRES", 12*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "doordashboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "session_changed"),

		PrecomputeInterval: getEnvDuration("PRECOMPUTE_INTERVAL", 5*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleWeeklySheetName:    getEnv("GOOGLE_WEEKLY_SHEET_NAME", "Weekly"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// SheetsEnabled reports whether the weekly export is configured.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DataFile == "" {
		errors = append(errors, "data file path cannot be empty")
	}

	// Directories for the data file, cache file and user database are created on demand
	for _, path := range []string{c.DataFile, c.CacheFile, c.SQLiteDBPath} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	// Validate JWT settings
	if len(c.JWTSecretKey) < 16 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 16 characters")
	}
	if c.JWTTokenExpires < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token lifetime %v: must be at least 1 minute", c.JWTTokenExpires))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.ReloadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid reload timeout %v: must be positive", c.ReloadTimeout))
	}
	if c.WriteLockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid write lock timeout %v: must be positive", c.WriteLockTimeout))
	}
	if c.ViewCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid view cache TTL %v: must be positive", c.ViewCacheTTL))
	}

	if c.ClientBuild != "" {
		if info, err := os.Stat(c.ClientBuild); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("client build directory does not exist: %s", c.ClientBuild))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}

	// Validate AMQP exchange and queue names if AMQP is configured
	if c.AMQPURL != "" {
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if an export target is set
	if c.SheetsEnabled() {
		if c.GoogleWeeklySheetName == "" {
			errors = append(errors, "Google weekly sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.PrecomputeInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid precompute interval %v: must be at least 1 second", c.PrecomputeInterval))
	} else if c.PrecomputeInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid precompute interval %v: must be at most 24 hours", c.PrecomputeInterval))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
