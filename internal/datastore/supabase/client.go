// Package supabase talks to a hosted Supabase project: GoTrue (through
// gotrue-go) for sessions and PostgREST for rows. Every data request carries
// the user's access token so row-level security policies apply.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gotrue "github.com/supabase-community/gotrue-go"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

// Client holds the project endpoint and the public anon key.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	auth    gotrue.Client
	now     func() time.Time
}

var (
	_ datastore.Authenticator = (*Client)(nil)
	_ datastore.Connector     = (*Client)(nil)
)

// New builds a client for the project at projectURL.
func New(projectURL, anonKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", projectURL)
	}
	if anonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: timeout},
		auth:    gotrue.New("", anonKey).WithCustomGoTrueURL(u.String() + "/auth/v1"),
		now:     time.Now,
	}, nil
}

// Connect binds a PostgREST client to the session's access token.
func (c *Client) Connect(s datastore.Session) datastore.Store {
	return &restStore{c: c, token: s.Token}
}

// Ping checks that the auth service answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.authClient(ctx, "").HealthCheck(); err != nil {
		return authError("ping", err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes a 2xx JSON body into out when out is
// non-nil. Non-2xx responses become *core.Error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &core.Error{Kind: core.KindUnknown, Op: op, Message: "encode request", Err: err}
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rdr)
	if err != nil {
		return &core.Error{Kind: core.KindUnknown, Op: op, Err: err}
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &core.Error{Kind: core.KindUnknown, Op: op, Message: "decode response", Err: err}
	}
	return nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &core.Error{Kind: core.KindUnavailable, Op: op, Message: "request cancelled", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Kind: core.KindUnavailable, Op: op, Message: "service unreachable", Err: err}
	}
	return &core.Error{Kind: core.KindUnavailable, Op: op, Err: err}
}

// apiError covers both PostgREST ({code,message,details,hint}) and GoTrue
// ({error,error_description} or {code,msg,error_code}) bodies. GoTrue bodies
// arrive through authError.
type apiError struct {
	Code             json.RawMessage `json:"code"`
	Message          string          `json:"message"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Msg              string          `json:"msg"`
	ErrorCode        string          `json:"error_code"`
}

func (e apiError) code() string {
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return s
	}
	return ""
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.ErrorDescription, e.Msg, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func decodeError(op string, status int, payload []byte) error {
	var ae apiError
	_ = json.Unmarshal(payload, &ae)
	code := ae.code()
	msg := ae.text()
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := datastore.KindForSQLState(code)
	switch {
	case code == "PGRST116":
		kind = core.KindNotFound
	case code == "PGRST204":
		kind = core.KindSchema
	case code == "PGRST301" || code == "PGRST302":
		kind = core.KindAuth
	case kind != core.KindUnknown:
	case status == http.StatusUnauthorized:
		kind = core.KindAuth
	case status == http.StatusForbidden:
		kind = core.KindPermission
	case status == http.StatusNotFound:
		kind = core.KindNotFound
	case status == http.StatusBadRequest && (ae.Error == "invalid_grant" || ae.ErrorCode == "invalid_credentials"):
		kind = core.KindAuth
	case status >= 500:
		kind = core.KindUnavailable
	}
	return &core.Error{Kind: kind, Op: op, Message: msg, Err: fmt.Errorf("supabase status %d code %q", status, code)}
}
