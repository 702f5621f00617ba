package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

type Config struct {
	// HTTP Server
	Port      string
	RateLimit string // ulule formatted rate, e.g. "120-M"

	// Backend selection
	Backend string

	// SQLite
	SQLiteDBPath string

	// Postgres
	PostgresDSN string

	// Supabase
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseTimeout time.Duration

	// Sessions
	JWTSecret        string
	SessionTTL       time.Duration
	SessionCacheSize int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Account created at startup on local-auth backends when missing
	AdminEmail    string
	AdminPassword string

	// Inventory
	LowStockThreshold int
	Timezone          string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	BackupInterval    time.Duration
	WorkerConcurrency int

	// Logging
	LogLevel  string
	LogFormat string
}

var validBackends = []string{"memory", "sqlite", "postgres", "supabase"}

// Load reads the configuration from the process environment.
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		RateLimit: getEnv("RATE_LIMIT", "120-M"),

		Backend:      getEnv("BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/nedwiyt.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseTimeout: getEnvDuration("SUPABASE_TIMEOUT", 15*time.Second),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		SessionTTL:       getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 256),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 10),
		Timezone:          getEnv("TIMEZONE", "UTC"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nedwiyt"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "nedwiyt.inventory"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		BackupInterval:    getEnvDuration("BACKUP_INTERVAL", time.Hour),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// LoadWithDotEnv loads the given .env files (or ./.env) when present and then
// reads the environment. Missing files are not an error.
func LoadWithDotEnv(files ...string) *Config {
	_ = godotenv.Load(files...)
	return Load()
}

// UsesLocalAuth reports whether sessions are issued by this process rather
// than by the hosted auth service.
func (c *Config) UsesLocalAuth() bool {
	return c.Backend != "supabase"
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExportEnabled reports whether the spreadsheet export has a target.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			errors = append(errors, fmt.Sprintf("invalid rate limit '%s': %v", c.RateLimit, err))
		}
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	switch c.Backend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "supabase":
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using supabase backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid SUPABASE_URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
		if c.SupabaseAnonKey == "" {
			errors = append(errors, "SUPABASE_ANON_KEY is required when using supabase backend")
		}
		if c.SupabaseTimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid supabase timeout %v: must be at least 1 second", c.SupabaseTimeout))
		}
	}

	if isValidBackend && c.UsesLocalAuth() {
		if len(c.JWTSecret) < 16 {
			errors = append(errors, "JWT_SECRET must be at least 16 characters when sessions are issued locally")
		}
	}

	if c.AdminEmail != "" {
		if !strings.Contains(c.AdminEmail, "@") {
			errors = append(errors, fmt.Sprintf("invalid ADMIN_EMAIL '%s'", c.AdminEmail))
		}
		if len(c.AdminPassword) < 8 {
			errors = append(errors, "ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
		}
	}

	if c.SessionTTL < 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 5 minutes", c.SessionTTL))
	} else if c.SessionTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 30 days", c.SessionTTL))
	}

	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}

	if c.RedisAddr != "" && (c.RedisDB < 0 || c.RedisDB > 15) {
		errors = append(errors, fmt.Sprintf("invalid redis db %d: must be between 0 and 15", c.RedisDB))
	}

	if c.LowStockThreshold < 0 {
		errors = append(errors, fmt.Sprintf("invalid low stock threshold %d: must not be negative", c.LowStockThreshold))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
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

	if c.GoogleSpreadsheetID != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for spreadsheet export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// zero disables the periodic backup
	if c.BackupInterval != 0 {
		if c.BackupInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at least 1 minute", c.BackupInterval))
		} else if c.BackupInterval > 24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at most 24 hours", c.BackupInterval))
		}
	}

	if c.WorkerConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be at least 1", c.WorkerConcurrency))
	} else if c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be at most 64", c.WorkerConcurrency))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'json' or 'text'", c.LogFormat))
	}

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
