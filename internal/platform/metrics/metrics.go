// Package metrics holds the Prometheus collectors shared by all services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Discovery engine
	DiscoveryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_fetches_total",
			Help: "Discovery page fetches by mode and outcome",
		},
		[]string{"mode", "outcome"}, // appended, exhausted, stale, skipped, failed
	)

	DiscoverySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_sessions_open",
			Help: "Discovery sessions currently held by the registry",
		},
	)

	// Metadata provider
	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_request_duration_seconds",
			Help:    "Latency of TMDB API calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_lookups_total",
			Help: "Discovery response cache lookups",
		},
		[]string{"backend", "result"}, // hit, miss, error
	)

	// Social
	SuggestionsServed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_suggestions_size",
			Help:    "Number of suggested users returned, by source",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"source"}, // taste, backfill
	)

	// Chat
	ChatSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_subscriptions_active",
			Help: "Open conversation subscriptions",
		},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
