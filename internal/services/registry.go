package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"nedwiyt/internal/cache"
	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

// SessionRegistry owns one InventoryState per session token. States are
// kept in an LRU; an evicted state is rebuilt from its token on next use.
type SessionRegistry struct {
	auth      datastore.Authenticator
	connector datastore.Connector
	opts      Options
	states    *cache.LRUCache[*InventoryState]
	maxAge    time.Duration

	mu       sync.Mutex
	onChange func(key string, c Change)
}

func NewSessionRegistry(auth datastore.Authenticator, connector datastore.Connector, opts Options, size int, maxAge time.Duration) *SessionRegistry {
	return &SessionRegistry{
		auth:      auth,
		connector: connector,
		opts:      opts,
		states:    cache.NewLRUCache[*InventoryState](size, maxAge),
		maxAge:    maxAge,
	}
}

// Cache exposes the state cache so a manager can sweep it.
func (r *SessionRegistry) Cache() *cache.LRUCache[*InventoryState] { return r.states }

// OnChange sets the hook every new state reports its changes to, together
// with the session key.
func (r *SessionRegistry) OnChange(fn func(key string, c Change)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SessionKey derives a stable, non-secret key from a session token.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:12])
}

func (r *SessionRegistry) newState(key string) *InventoryState {
	return r.attachHook(NewInventoryState(r.auth, r.connector, r.opts), key)
}

// Login signs in with a fresh state and registers it under the new token.
// The returned state is usable even when the initial load failed; that
// failure is returned as the error.
func (r *SessionRegistry) Login(ctx context.Context, email, password string) (*InventoryState, datastore.Session, error) {
	st := NewInventoryState(r.auth, r.connector, r.opts)
	session, err := st.Login(ctx, email, password)
	if session.Token == "" {
		return nil, datastore.Session{}, err
	}
	key := SessionKey(session.Token)
	st = r.attachHook(st, key)
	r.put(session, st)
	return st, session, err
}

func (r *SessionRegistry) attachHook(st *InventoryState, key string) *InventoryState {
	r.mu.Lock()
	hook := r.onChange
	r.mu.Unlock()
	if hook != nil {
		st.OnChange(func(c Change) { hook(key, c) })
	}
	return st
}

// Resolve returns the state bound to token, restoring it when needed.
func (r *SessionRegistry) Resolve(ctx context.Context, token string) (*InventoryState, error) {
	if token == "" {
		return nil, core.Errorf(core.KindAuth, "resolve_session", "no session")
	}
	st, ok := r.states.Get(token)
	if !ok {
		st = r.newState(SessionKey(token))
		r.mu.Lock()
		if existing, ok := r.states.Get(token); ok {
			st = existing
		} else {
			r.states.Set(token, st)
		}
		r.mu.Unlock()
	}

	if err := st.Resume(ctx, token); err != nil {
		if core.IsKind(err, core.KindAuth) {
			r.states.Delete(token)
		}
		return nil, err
	}
	if session, ok := st.Session(); ok {
		r.put(session, st)
	}
	return st, nil
}

// Logout signs the token out and forgets its state.
func (r *SessionRegistry) Logout(ctx context.Context, token string) error {
	st, ok := r.states.Get(token)
	r.states.Delete(token)
	if !ok {
		session, err := r.auth.CurrentSession(ctx, token)
		if err != nil {
			return nil
		}
		return r.auth.SignOut(ctx, session)
	}
	return st.Logout(ctx)
}

// Len reports the number of cached states.
func (r *SessionRegistry) Len() int { return r.states.Size() }

func (r *SessionRegistry) put(session datastore.Session, st *InventoryState) {
	ttl := r.maxAge
	if !session.ExpiresAt.IsZero() {
		if left := time.Until(session.ExpiresAt); left < ttl {
			ttl = left
		}
	}
	r.states.SetWithTTL(session.Token, st, ttl)
}
