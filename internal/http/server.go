package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nedwiyt/internal/datastore"
	"nedwiyt/internal/log"
	"nedwiyt/internal/middleware/ratelimit"
	"nedwiyt/internal/middleware/security"
	"nedwiyt/internal/middleware/trace"
	"nedwiyt/internal/services"
	"nedwiyt/internal/websocket"
	appweb "nedwiyt/web"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr      string
	RateLimit string // ulule formatted, e.g. "120-M"
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool
	// OriginPatterns allowed to open the websocket; empty means same origin.
	OriginPatterns []string
	// Backend is reported by /readyz.
	Backend string
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Registry *services.SessionRegistry
	Hub      *websocket.Hub
	// Pinger is checked by /readyz when the backend offers one.
	Pinger datastore.Pinger
	Logger *log.Logger
}

type appMetrics struct {
	uptime        time.Time
	mutations     atomic.Int64
	logins        atomic.Int64
	loginFailures atomic.Int64
}

type Server struct {
	http.Server
	cfg       Config
	templates *template.Template
	registry  *services.SessionRegistry
	hub       *websocket.Hub
	pinger    datastore.Pinger
	logger    *log.Logger

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates, wires the routes and wraps them
// in tracing, probe detection, security headers and rate limiting.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("http server: session registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	hub := deps.Hub
	if hub == nil {
		hub = websocket.NewHub(logger)
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		templates: t,
		registry:  deps.Registry,
		hub:       hub,
		pinger:    deps.Pinger,
		logger:    logger.WithComponent(log.ComponentHTTP),
		detector:  security.NewDetector(logger),
	}
	s.appMetrics.uptime = time.Now()
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	rlCfg := ratelimit.DefaultConfig()
	if cfg.RateLimit != "" {
		rlCfg.Rate = cfg.RateLimit
	}
	rlCfg.Exempt = append(rlCfg.Exempt, "/metrics")
	rlCfg.OnLimit = func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a moment.").
			TriggerErrorNotification("Too many requests. Please wait a moment.").
			Write(w)
	}
	if s.limiter, err = ratelimit.New(rlCfg, s.detector.ExtractClientIP, logger); err != nil {
		return nil, err
	}

	// Every committed change reaches the other tabs of the same session.
	s.registry.OnChange(func(key string, c services.Change) {
		s.hub.Publish(key, websocket.NewMessage(c.Entity, c.Action, c.EntityID, c.Stats))
	})

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssets(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	// Pages and session lifecycle
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// Partials
	mux.HandleFunc("/ui/", s.handlePartial)

	// Mutations
	mux.HandleFunc("/categories", s.mutation(s.handleCreateCategory))
	mux.HandleFunc("/categories/update", s.mutation(s.handleUpdateCategory))
	mux.HandleFunc("/categories/delete", s.mutation(s.handleDeleteCategory))
	mux.HandleFunc("/categories/refresh", s.mutation(s.handleRefreshCategories))
	mux.HandleFunc("/items", s.mutation(s.handleCreateItem))
	mux.HandleFunc("/items/update", s.mutation(s.handleUpdateItem))
	mux.HandleFunc("/items/delete", s.mutation(s.handleDeleteItem))
	mux.HandleFunc("/items/sell", s.mutation(s.handleSellItem))
	mux.HandleFunc("/money", s.mutation(s.handleCreateMoney))
	mux.HandleFunc("/money/update", s.mutation(s.handleUpdateMoney))
	mux.HandleFunc("/money/delete", s.mutation(s.handleDeleteMoney))

	// API and live updates
	mux.HandleFunc("/api/stats", s.handleAPIStats)
	mux.HandleFunc("/ws", websocket.HandleWebSocket(s.hub, s.websocketTopic, cfg.OriginPatterns))

	// Operations
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", s.newMetricsHandler())

	var handler http.Handler = mux
	handler = s.limiter.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// resolve returns the caller's state, or writes the response for a missing
// or failed session and returns nil.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) *services.InventoryState {
	st, err := s.registry.Resolve(r.Context(), sessionToken(r))
	if err == nil {
		return st
	}
	if isAuthError(err) {
		clearSessionCookie(w, s.cfg.SecureCookies)
		switch {
		case isHTMX(r):
			NewHTMXResponse().Status(http.StatusUnauthorized).Header("HX-Redirect", "/login").Write(w)
		case r.Method == http.MethodGet && r.URL.Path == "/":
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		default:
			ErrorFor(err).Write(w)
		}
		return nil
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Session restore failed", "error", err)
	ErrorFor(err).Write(w)
	return nil
}

// mutationFunc handles one POST against the caller's state.
type mutationFunc func(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser)

func (s *Server) mutation(fn mutationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequirePOST(r); resp != nil {
			resp.Write(w)
			return
		}
		st := s.resolve(w, r)
		if st == nil {
			return
		}
		p := NewRequestBodyParser(r)
		if err := p.Parse(); err != nil {
			BadRequestError("Invalid request format").Write(w)
			return
		}
		fn(w, r, st, p)
	}
}

func (s *Server) websocketTopic(r *http.Request) (string, bool) {
	token := sessionToken(r)
	if _, err := s.registry.Resolve(r.Context(), token); err != nil {
		return "", false
	}
	return services.SessionKey(token), true
}
