package supabase

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

// authClient binds one GoTrue call to ctx. The library methods take no
// context, so it rides on the transport instead.
func (c *Client) authClient(ctx context.Context, token string) gotrue.Client {
	cl := c.auth.WithClient(http.Client{
		Timeout:   c.http.Timeout,
		Transport: contextTransport{ctx: ctx, next: c.http.Transport},
	})
	if token != "" {
		cl = cl.WithToken(token)
	}
	return cl
}

type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(r.WithContext(t.ctx))
}

// gotrue-go reports non-2xx answers as "response status code N: <body>".
var authStatusPattern = regexp.MustCompile(`(?s)status code (\d{3})(?::\s*(.*))?`)

func authError(op string, err error) error {
	if m := authStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return decodeError(op, status, []byte(m[2]))
	}
	return transportError(op, err)
}

// SignIn exchanges email and password for an access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (datastore.Session, error) {
	const op = "sign_in"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return datastore.Session{}, core.Errorf(core.KindValidation, op, "email and password are required")
	}

	tr, err := c.authClient(ctx, "").SignInWithEmailPassword(email, password)
	if err != nil {
		return datastore.Session{}, authError(op, err)
	}
	if tr == nil || tr.AccessToken == "" {
		return datastore.Session{}, core.Errorf(core.KindAuth, op, "no access token returned")
	}

	s := datastore.Session{
		Token:     tr.AccessToken,
		Email:     tr.User.Email,
		ExpiresAt: c.expiry(tr.Session),
	}
	if tr.User.ID != uuid.Nil {
		s.UserID = tr.User.ID.String()
	}
	if claims, ok := tokenClaims(tr.AccessToken); ok {
		s.TokenID = claims.ID
		if s.UserID == "" {
			s.UserID = claims.Subject
		}
	}
	return s, nil
}

// SignOut revokes the refresh tokens behind s. A token that has already
// expired counts as signed out.
func (c *Client) SignOut(ctx context.Context, s datastore.Session) error {
	const op = "sign_out"
	if s.Token == "" {
		return nil
	}
	if err := c.authClient(ctx, s.Token).Logout(); err != nil {
		err = authError(op, err)
		if core.IsKind(err, core.KindAuth) {
			return nil
		}
		return err
	}
	return nil
}

// CurrentSession asks GoTrue who owns token.
func (c *Client) CurrentSession(ctx context.Context, token string) (datastore.Session, error) {
	const op = "current_session"
	if token == "" {
		return datastore.Session{}, core.Errorf(core.KindAuth, op, "no session")
	}
	claims, ok := tokenClaims(token)
	if ok && claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return datastore.Session{}, core.Errorf(core.KindAuth, op, "session expired")
	}

	u, err := c.authClient(ctx, token).GetUser()
	if err != nil {
		return datastore.Session{}, authError(op, err)
	}
	s := datastore.Session{Token: token, Email: u.Email}
	if u.ID != uuid.Nil {
		s.UserID = u.ID.String()
	}
	if ok {
		s.TokenID = claims.ID
		if s.UserID == "" {
			s.UserID = claims.Subject
		}
		if claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return s, nil
}

func (c *Client) expiry(s types.Session) time.Time {
	switch {
	case s.ExpiresAt > 0:
		return time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		return c.now().Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
	}
	if claims, ok := tokenClaims(s.AccessToken); ok && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Time{}
}

// tokenClaims reads claims without verifying the signature. GoTrue remains
// the authority; this only avoids a round trip for tokens that are
// obviously stale.
func tokenClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
