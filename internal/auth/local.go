// Package auth issues and verifies sessions for backends that keep their own
// user table, and caches resolved sessions for every backend.
package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
	"nedwiyt/internal/log"
)

const minPasswordLength = 8

// LocalAuthenticator checks passwords against a UserStore and issues JWTs.
type LocalAuthenticator struct {
	users   datastore.UserStore
	issuer  *Issuer
	revoked RevocationList
	logger  *log.Logger
}

var _ datastore.Authenticator = (*LocalAuthenticator)(nil)

func NewLocalAuthenticator(users datastore.UserStore, issuer *Issuer, revoked RevocationList, logger *log.Logger) *LocalAuthenticator {
	if logger == nil {
		logger = log.Discard()
	}
	return &LocalAuthenticator{
		users:   users,
		issuer:  issuer,
		revoked: revoked,
		logger:  logger.WithComponent(log.ComponentAuth),
	}
}

func (a *LocalAuthenticator) SignIn(ctx context.Context, email, password string) (datastore.Session, error) {
	const op = "sign_in"
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return datastore.Session{}, core.Errorf(core.KindValidation, op, "email and password are required")
	}

	u, err := a.users.UserByEmail(ctx, email)
	if core.IsKind(err, core.KindNotFound) {
		// compare anyway so unknown emails cost the same as bad passwords
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return datastore.Session{}, invalidCredentials(op)
	}
	if err != nil {
		return datastore.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn("Rejected sign-in", log.FieldUserID, u.ID)
		return datastore.Session{}, invalidCredentials(op)
	}

	s, err := a.issuer.Issue(u)
	if err != nil {
		return datastore.Session{}, core.Wrap(core.KindUnknown, op, err)
	}
	a.logger.Info("User signed in", log.FieldUserID, u.ID)
	return s, nil
}

func (a *LocalAuthenticator) SignOut(ctx context.Context, s datastore.Session) error {
	if s.TokenID == "" || a.revoked == nil {
		return nil
	}
	if err := a.revoked.Revoke(ctx, s.TokenID, s.ExpiresAt); err != nil {
		return core.Wrap(core.KindUnavailable, "sign_out", err)
	}
	a.logger.Info("User signed out", log.FieldUserID, s.UserID)
	return nil
}

func (a *LocalAuthenticator) CurrentSession(ctx context.Context, token string) (datastore.Session, error) {
	const op = "current_session"
	if token == "" {
		return datastore.Session{}, core.Errorf(core.KindAuth, op, "no session")
	}
	claims, err := a.issuer.Parse(token)
	if err != nil {
		return datastore.Session{}, &core.Error{Kind: core.KindAuth, Op: op, Message: "invalid session", Err: err}
	}
	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return datastore.Session{}, core.Wrap(core.KindUnavailable, op, err)
		}
		if revoked {
			return datastore.Session{}, core.Errorf(core.KindAuth, op, "session signed out")
		}
	}
	return claims.session(token), nil
}

// HashPassword returns the bcrypt hash stored for a new account.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", core.FieldError("password", "Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", core.Wrap(core.KindUnknown, "hash_password", err)
	}
	return string(hash), nil
}

// EnsureUser creates the account unless the email is already registered.
func EnsureUser(ctx context.Context, users datastore.UserStore, email, password string) (datastore.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := users.UserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !core.IsKind(err, core.KindNotFound) {
		return datastore.User{}, false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return datastore.User{}, false, err
	}
	u, err = users.CreateUser(ctx, email, hash)
	if err != nil {
		return datastore.User{}, false, err
	}
	return u, true, nil
}

func invalidCredentials(op string) error {
	return core.Errorf(core.KindAuth, op, "invalid email or password")
}

// dummyHash is compared against when the email is unknown, at the same cost
// as stored hashes, so both paths take as long.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("nedwiyt-timing"), bcrypt.DefaultCost)
	return hash
})
