package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nedwiyt/internal/core"
	"nedwiyt/internal/log"
	"nedwiyt/internal/services"
)

func isAuthError(err error) bool {
	return core.IsKind(err, core.KindAuth)
}

// render executes a template into a buffer first so a failure never leaves
// a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"error", err, "template", name)
		InternalServerError("Could not render the page").Write(w)
		return
	}
	NewHTMXResponse().Status(status).Header("Content-Type", "text/html; charset=utf-8").Body(buf.Bytes()).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	st := s.resolve(w, r)
	if st == nil {
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", newDashboardPage(st))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, err := s.registry.Resolve(r.Context(), sessionToken(r)); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", loginPage{})
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	email := strings.ToLower(p.Get("email"))
	password := p.Get("password")
	if email == "" || password == "" {
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", loginPage{Email: email, Error: "Enter your email and password"})
		return
	}

	st, session, err := s.registry.Login(ctx, email, password)
	if st == nil {
		s.appMetrics.loginFailures.Add(1)
		logger.WarnContext(ctx, "Login rejected", log.FieldErrorKind, core.KindOf(err).String())
		s.render(w, r, StatusForKind(core.KindOf(err)), "login.html", loginPage{Email: email, Error: core.UserMessage(err)})
		return
	}
	s.appMetrics.logins.Add(1)
	if err != nil {
		// signed in, but the first load failed; the next request loads again
		logger.WarnContext(ctx, "Initial load failed after login", log.FieldUserID, session.UserID, "error", err)
	}
	logger.InfoContext(ctx, "User logged in", log.FieldUserID, session.UserID, log.FieldOperation, log.OpLogin)

	setSessionCookie(w, session.Token, session.ExpiresAt, s.cfg.SecureCookies)
	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", "/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if token := sessionToken(r); token != "" {
		if err := s.registry.Logout(r.Context(), token); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Logout failed", "error", err)
		}
	}
	clearSessionCookie(w, s.cfg.SecureCookies)
	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", "/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handlePartial renders /ui/{name}.
func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/ui/")
	view, ok := partials[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	st := s.resolve(w, r)
	if st == nil {
		return
	}
	s.render(w, r, http.StatusOK, name, view(st))
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	st, err := s.registry.Resolve(r.Context(), sessionToken(r))
	if err != nil {
		writeJSON(w, StatusForKind(core.KindOf(err)), map[string]string{"error": core.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(st))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks the templates and, when available, the backing store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{"backend": s.cfg.Backend}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_checked"
	}

	checks["sessions"] = s.registry.Len()
	checks["websocket_clients"] = s.hub.ClientCount()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// partialFor renders a partial into bytes for a mutation response.
func (s *Server) partialFor(name string, st *services.InventoryState) ([]byte, error) {
	view, ok := partials[name]
	if !ok {
		return nil, fmt.Errorf("unknown partial %q", name)
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, view(st)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
