package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"nedwiyt/internal/cache"
)

// RevocationList remembers signed-out token ids until the token would have
// expired anyway.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocations keeps revoked ids in process. Entries expire with the
// token, so the list stays bounded by the number of live sessions.
type MemoryRevocations struct {
	ids *cache.LRUCache[struct{}]
	now func() time.Time
}

func NewMemoryRevocations(size int) *MemoryRevocations {
	return &MemoryRevocations{
		ids: cache.NewLRUCache[struct{}](size, time.Hour),
		now: time.Now,
	}
}

// Cache exposes the backing cache so a manager can sweep it.
func (m *MemoryRevocations) Cache() *cache.LRUCache[struct{}] { return m.ids }

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.ids.SetWithTTL(tokenID, struct{}{}, until.Sub(m.now()))
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := m.ids.Get(tokenID)
	return ok, nil
}

// RedisRevocations shares the list between server instances.
type RedisRevocations struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "nedwiyt:revoked:", now: time.Now}
}

// NewRedisClient opens a client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, r.prefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("check revoked token: %w", err)
	}
}
