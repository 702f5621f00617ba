package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "nedwiyt"

// newMetricsHandler serves the server's counters in the Prometheus text
// format. Each server owns its registry; values are read at scrape time from
// the middleware, the session registry and the websocket hub.
func (s *Server) newMetricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string, fn func() float64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: name, Help: help,
		}, fn))
	}
	gauge := func(name, help string, fn func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: name, Help: help,
		}, fn))
	}

	counter("http_requests_total", "Total number of HTTP requests",
		func() float64 { return float64(s.tracer.GetMetrics().TotalRequests) })
	gauge("http_requests_in_flight", "Requests being served",
		func() float64 { return float64(s.tracer.GetMetrics().InFlight) })
	counter("http_client_errors_total", "Responses with a 4xx status",
		func() float64 { return float64(s.tracer.GetMetrics().ClientErrors) })
	counter("http_server_errors_total", "Responses with a 5xx status",
		func() float64 { return float64(s.tracer.GetMetrics().ServerErrors) })
	gauge("http_request_duration_avg_seconds", "Average request duration",
		func() float64 {
			return (time.Duration(s.tracer.GetMetrics().AverageDurationMic) * time.Microsecond).Seconds()
		})
	counter("inventory_mutations_total", "Committed inventory mutations",
		func() float64 { return float64(s.appMetrics.mutations.Load()) })
	counter("logins_total", "Successful logins",
		func() float64 { return float64(s.appMetrics.logins.Load()) })
	counter("login_failures_total", "Rejected logins",
		func() float64 { return float64(s.appMetrics.loginFailures.Load()) })
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter",
		func() float64 { return float64(s.limiter.GetMetrics().Limited) })
	counter("suspicious_requests_total", "Requests rejected as probes",
		func() float64 { return float64(s.detector.Suspicious()) })
	gauge("active_sessions", "Cached session states",
		func() float64 { return float64(s.registry.Len()) })
	gauge("websocket_clients", "Connected websocket clients",
		func() float64 { return float64(s.hub.ClientCount()) })
	gauge("uptime_seconds", "Application uptime in seconds",
		func() float64 { return time.Since(s.appMetrics.uptime).Seconds() })

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
