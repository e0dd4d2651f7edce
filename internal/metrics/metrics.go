// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts processed events, partitioned by side.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_events_total",
		Help: "Total number of trade events processed",
	}, []string{"side"})

	// EventLatency is the time spent in the engine per event.
	EventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_event_latency_seconds",
		Help:    "Event processing latency in seconds",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"side"})

	// EventRejections counts events refused before touching engine state.
	EventRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_event_rejections_total",
		Help: "Trade events rejected by validation",
	}, []string{"reason"})

	// ActiveSessions tracks runs with an engine loaded in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_active_sessions",
		Help: "Number of runs with an in-memory engine",
	})

	// SessionRebuilds counts engines rebuilt by replaying stored events.
	SessionRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_session_rebuilds_total",
		Help: "Engines rebuilt from the stored event log",
	})

	// SessionEvictions counts idle engines dropped by the janitor.
	SessionEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_session_evictions_total",
		Help: "Idle in-memory engines evicted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
