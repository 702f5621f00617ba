package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nedwiyt/internal/auth"
	"nedwiyt/internal/cache"
	"nedwiyt/internal/datastore"
	"nedwiyt/internal/datastore/memory"
	"nedwiyt/internal/datastore/postgres"
	"nedwiyt/internal/datastore/supabase"
	"nedwiyt/internal/log"
	"nedwiyt/internal/storage"
)

// sessionCacheAge bounds how long a resolved session is trusted without
// asking the authenticator again.
const (
	sessionCacheAge = time.Minute
	revocationSize  = 4096
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// localStore is what the self-hosted backends provide.
type localStore interface {
	datastore.Store
	datastore.UserStore
	datastore.Pinger
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		dir := config.DataDirectory
		if dir == "" {
			dir = "data"
		}
		store := memory.NewFromFiles(dir)
		f.logger.Info("Initialized memory backend", "data_directory", dir)
		return f.withLocalAuth(ctx, config, store, nil)

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return f.withLocalAuth(ctx, config, repo, repo.Close)

	case PostgresBackend:
		pg, err := postgres.Open(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		f.logger.Info("Initialized postgres backend", "dsn", redactDSN(config.PostgresDSN))
		return f.withLocalAuth(ctx, config, pg, pg.Close)

	case SupabaseBackend:
		return f.createSupabaseBackend(config)

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSupabaseBackend(config Config) (*Result, error) {
	client, err := supabase.New(config.SupabaseURL, config.SupabaseAnonKey, config.SupabaseTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	sessions := auth.NewCachingAuthenticator(client, max(config.SessionCacheSize, 1), sessionCacheAge)

	f.logger.Info("Initialized supabase backend", "url", config.SupabaseURL)
	return &Result{
		Type:          SupabaseBackend,
		Authenticator: sessions,
		Connector:     client,
		Pinger:        client,
		Caches:        []cache.Cleaner{sessions.Cache()},
	}, nil
}

// withLocalAuth wires the JWT issuer, the revocation list and the admin
// account around a self-hosted store.
func (f *DefaultFactory) withLocalAuth(ctx context.Context, config Config, store localStore, closeStore CleanupFunc) (*Result, error) {
	cleanups := []CleanupFunc{}
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}
	fail := func(err error) (*Result, error) {
		_ = runCleanups(cleanups)
		return nil, err
	}

	issuer, err := auth.NewIssuer(config.JWTSecret, config.SessionTTL)
	if err != nil {
		return fail(fmt.Errorf("session issuer: %w", err))
	}

	var (
		revoked auth.RevocationList
		caches  []cache.Cleaner
	)
	if config.RedisAddr != "" {
		rdb, err := auth.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, rdb.Close)
		revoked = auth.NewRedisRevocations(rdb)
		f.logger.Info("Using redis revocation list", "addr", config.RedisAddr, "db", config.RedisDB)
	} else {
		mem := auth.NewMemoryRevocations(revocationSize)
		revoked = mem
		caches = append(caches, mem.Cache())
	}

	local := auth.NewLocalAuthenticator(store, issuer, revoked, f.logger)
	sessions := auth.NewCachingAuthenticator(local, max(config.SessionCacheSize, 1), sessionCacheAge)
	caches = append(caches, sessions.Cache())

	if config.AdminEmail != "" {
		u, created, err := auth.EnsureUser(ctx, store, config.AdminEmail, config.AdminPassword)
		if err != nil {
			return fail(fmt.Errorf("seed admin user: %w", err))
		}
		if created {
			f.logger.Info("Created admin user", log.FieldUserID, u.ID)
		}
	}

	return &Result{
		Type:          config.Type,
		Authenticator: sessions,
		Connector:     datastore.StaticConnector{Store: store},
		Store:         store,
		Users:         store,
		Pinger:        store,
		Caches:        caches,
		Cleanup:       func() error { return runCleanups(cleanups) },
	}, nil
}

// runCleanups releases in reverse order of acquisition.
func runCleanups(fns []CleanupFunc) error {
	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
