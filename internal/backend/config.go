package backend

import (
	"fmt"
	"strings"

	"nedwiyt/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,

		SupabaseURL:     appConfig.SupabaseURL,
		SupabaseAnonKey: appConfig.SupabaseAnonKey,
		SupabaseTimeout: appConfig.SupabaseTimeout,

		JWTSecret:        appConfig.JWTSecret,
		SessionTTL:       appConfig.SessionTTL,
		SessionCacheSize: appConfig.SessionCacheSize,
		RedisAddr:        appConfig.RedisAddr,
		RedisPassword:    appConfig.RedisPassword,
		RedisDB:          appConfig.RedisDB,

		AdminEmail:    appConfig.AdminEmail,
		AdminPassword: appConfig.AdminPassword,

		DataDirectory: "data",
	}, nil
}

// Validate checks the fields the selected backend needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required for postgres backend")
		}
	case SupabaseBackend:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("supabase URL and anon key are required for supabase backend")
		}
	}

	if c.Type.LocalAuth() && len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT secret of at least 16 characters is required for %s backend", c.Type)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, SupabaseBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// Describe is a one-line, secret-free summary for startup logs.
func (c Config) Describe() string {
	switch c.Type {
	case SQLiteBackend:
		return "sqlite " + c.SQLiteDBPath
	case PostgresBackend:
		return "postgres " + redactDSN(c.PostgresDSN)
	case SupabaseBackend:
		return "supabase " + c.SupabaseURL
	default:
		return "memory " + c.DataDirectory
	}
}

// redactDSN hides the password of URL or key=value postgres DSNs.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		rest := dsn[i+3:]
		at := strings.LastIndex(rest, "@")
		if at < 0 {
			return dsn
		}
		cred := rest[:at]
		if colon := strings.Index(cred, ":"); colon >= 0 {
			cred = cred[:colon] + ":***"
		}
		return dsn[:i+3] + cred + rest[at:]
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
