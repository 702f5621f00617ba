package auth

import (
	"context"
	"time"

	"nedwiyt/internal/cache"
	"nedwiyt/internal/datastore"
)

// CachingAuthenticator memoizes CurrentSession so every request does not
// round-trip to the auth service. Entries live for at most maxAge and never
// beyond the session's own expiry.
type CachingAuthenticator struct {
	datastore.Authenticator
	sessions *cache.LRUCache[datastore.Session]
	maxAge   time.Duration
	now      func() time.Time
}

func NewCachingAuthenticator(inner datastore.Authenticator, size int, maxAge time.Duration) *CachingAuthenticator {
	return &CachingAuthenticator{
		Authenticator: inner,
		sessions:      cache.NewLRUCache[datastore.Session](size, maxAge),
		maxAge:        maxAge,
		now:           time.Now,
	}
}

// Cache exposes the session cache so a manager can sweep it.
func (c *CachingAuthenticator) Cache() *cache.LRUCache[datastore.Session] { return c.sessions }

func (c *CachingAuthenticator) CurrentSession(ctx context.Context, token string) (datastore.Session, error) {
	if s, ok := c.sessions.Get(token); ok && !s.Expired(c.now()) {
		return s, nil
	}
	s, err := c.Authenticator.CurrentSession(ctx, token)
	if err != nil {
		c.sessions.Delete(token)
		return datastore.Session{}, err
	}
	c.remember(s)
	return s, nil
}

func (c *CachingAuthenticator) SignIn(ctx context.Context, email, password string) (datastore.Session, error) {
	s, err := c.Authenticator.SignIn(ctx, email, password)
	if err != nil {
		return datastore.Session{}, err
	}
	c.remember(s)
	return s, nil
}

func (c *CachingAuthenticator) SignOut(ctx context.Context, s datastore.Session) error {
	c.sessions.Delete(s.Token)
	return c.Authenticator.SignOut(ctx, s)
}

func (c *CachingAuthenticator) remember(s datastore.Session) {
	ttl := c.maxAge
	if !s.ExpiresAt.IsZero() {
		if left := s.ExpiresAt.Sub(c.now()); left < ttl {
			ttl = left
		}
	}
	c.sessions.SetWithTTL(s.Token, s, ttl)
}
