// Package backend builds the authenticator and store pair the server, worker
// and admin CLI run against, selected by configuration.
package backend

import (
	"context"
	"time"

	"nedwiyt/internal/cache"
	"nedwiyt/internal/datastore"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a ready backend. Store and Users are nil for backends whose data
// is only reachable through a user session (supabase).
type Result struct {
	Type          BackendType
	Authenticator datastore.Authenticator
	Connector     datastore.Connector
	Store         datastore.Store
	Users         datastore.UserStore
	Pinger        datastore.Pinger
	// Caches are swept periodically by the caller's cache.Manager.
	Caches  []cache.Cleaner
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseTimeout time.Duration

	// Local session issuing
	JWTSecret        string
	SessionTTL       time.Duration
	SessionCacheSize int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Seeded on local-auth backends when missing
	AdminEmail    string
	AdminPassword string

	// Memory backend seed files
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SupabaseBackend BackendType = "supabase"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SupabaseBackend:
		return true
	default:
		return false
	}
}

// LocalAuth reports whether this process issues the sessions.
func (bt BackendType) LocalAuth() bool {
	return bt != SupabaseBackend
}
