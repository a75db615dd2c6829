// Package metrics provides Prometheus instrumentation for the game engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SpinsTotal counts resolved spins, partitioned by result.
	SpinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgslot_spins_total",
		Help: "Total number of spins resolved",
	}, []string{"result"}) // "win" or "lose"

	// SpinRejections counts spin requests rejected before resolving.
	SpinRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgslot_spin_rejections_total",
		Help: "Spin requests rejected before an outcome was drawn",
	}, []string{"reason"}) // "insufficient_balance" or "spin_in_flight"

	// SpinLatency tracks the full spin pipeline duration, reveal included.
	SpinLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tgslot_spin_latency_seconds",
		Help:    "Spin pipeline latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PayoutCredits accumulates credits paid out to players.
	PayoutCredits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgslot_payout_credits_total",
		Help: "Cumulative credits paid out",
	})

	// BetCredits accumulates credits wagered.
	BetCredits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgslot_bet_credits_total",
		Help: "Cumulative credits wagered",
	})

	// TopUpsTotal counts reconciled payment confirmations by outcome.
	TopUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgslot_topups_total",
		Help: "Payment confirmations processed",
	}, []string{"status"}) // "applied", "duplicate", "malformed"

	// WebSocketClients tracks connected WebSocket observers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tgslot_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgslot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tgslot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
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

		path := r.URL.Path
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
