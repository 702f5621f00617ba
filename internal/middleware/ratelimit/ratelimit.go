// Package ratelimit throttles requests per client IP with ulule/limiter.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"nedwiyt/internal/log"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate in limiter's formatted syntax, e.g. "120-M".
	Rate string
	// Paths that are never limited (health probes).
	Exempt []string
	// OnLimit writes the rejection. Nil writes a plain 429.
	OnLimit func(http.ResponseWriter, *http.Request)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Rate:   "120-M",
		Exempt: []string{"/healthz", "/readyz"},
	}
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	Limited int64
	Errors  int64
}

// Limiter wraps a ulule limiter backed by an in-process store.
type Limiter struct {
	instance *limiter.Limiter
	mw       *stdlib.Middleware
	exempt   map[string]bool
	logger   *log.Logger
	limited  atomic.Int64
	errors   atomic.Int64
}

func New(cfg Config, extractIP func(*http.Request) string, logger *log.Logger) (*Limiter, error) {
	if cfg.Rate == "" {
		cfg.Rate = DefaultConfig().Rate
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", cfg.Rate, err)
	}
	if logger == nil {
		logger = log.Discard()
	}

	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "nedwiyt",
		CleanUpInterval: 5 * time.Minute,
	})
	l := &Limiter{
		instance: limiter.New(store, rate),
		exempt:   make(map[string]bool, len(cfg.Exempt)),
		logger:   logger.WithComponent(log.ComponentRateLimit),
	}
	for _, p := range cfg.Exempt {
		l.exempt[p] = true
	}

	onLimit := cfg.OnLimit
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}

	l.mw = stdlib.NewMiddleware(l.instance,
		stdlib.WithKeyGetter(extractIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			l.limited.Add(1)
			l.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, extractIP(r),
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(rate.Period.Seconds())))
			onLimit(w, r)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			l.errors.Add(1)
			l.logger.ErrorContext(r.Context(), "Rate limiter failed", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}),
	)
	return l, nil
}

// Middleware applies the limit to every path not exempted.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	limited := l.mw.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{Limited: l.limited.Load(), Errors: l.errors.Load()}
}
