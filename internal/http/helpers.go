package http

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

// SessionCookie holds the session token. It is HttpOnly so scripts never see it.
const SessionCookie = "nedwiyt_session"

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// isHTMX reports requests issued by htmx rather than a full page load.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// templateFuncs are available to every template.
var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return core.FormatAmount(d) },
	"pct":   func(d decimal.Decimal) string { return d.StringFixed(1) },
	"negative": func(d decimal.Decimal) bool {
		return d.IsNegative()
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
}
