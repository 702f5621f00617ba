// Package trace tags every request with an id, logs its outcome and keeps
// the request counters exposed on /metrics.
package trace

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"nedwiyt/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderRequestID is read from trusted callers and echoed on every response.
const HeaderRequestID = "X-Request-ID"

// Metrics is a point-in-time copy of the request counters.
type Metrics struct {
	TotalRequests      int64
	InFlight           int64
	ClientErrors       int64 // 4xx
	ServerErrors       int64 // 5xx
	AverageDurationMic int64 // microseconds over all completed requests
}

type counters struct {
	total, inFlight, client4xx, server5xx, durationMic atomic.Int64
}

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	requests  *log.StructuredLogger
	c         counters
}

func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		requests:  log.NewStructuredLogger(logger),
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := sanitizeID(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = log.NewContext(ctx, m.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		m.c.total.Add(1)
		m.c.inFlight.Add(1)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			m.c.inFlight.Add(-1)
			elapsed := time.Since(start)
			m.c.durationMic.Add(elapsed.Microseconds())
			switch {
			case rw.statusCode >= 500:
				m.c.server5xx.Add(1)
			case rw.statusCode >= 400:
				m.c.client4xx.Add(1)
			}
			m.requests.LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
		}()

		next.ServeHTTP(rw, r)
	})
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	total := m.c.total.Load()
	inFlight := m.c.inFlight.Load()
	out := Metrics{
		TotalRequests: total,
		InFlight:      inFlight,
		ClientErrors:  m.c.client4xx.Load(),
		ServerErrors:  m.c.server5xx.Load(),
	}
	if done := total - inFlight; done > 0 {
		out.AverageDurationMic = m.c.durationMic.Load() / done
	}
	return out
}

// responseWriter records the status code. It passes hijacking through so
// websocket upgrades work behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// sanitizeID accepts short ids made of letters, digits, dash and underscore.
func sanitizeID(id string) string {
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ""
		}
	}
	return id
}
