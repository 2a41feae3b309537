// Package metrics provides Prometheus instrumentation for telecast.
//
// Metrics registered here:
//
//	telecast_http_requests_total          — counter: HTTP requests by method/path/status
//	telecast_http_request_duration_secs   — histogram: HTTP latency by method/path
//	telecast_upstream_fetch_total         — counter: provider API calls by action/outcome
//	telecast_refresh_total                — counter: refresh units by resource/outcome
//	telecast_artwork_downloads_total      — counter: artwork downloads by outcome
//
// The standard go_* and process_* collectors come with the default registry.
// Mount Handler() at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequests counts HTTP requests by method, route pattern, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "telecast_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

// HTTPDuration tracks HTTP request latency by method and route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "telecast_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// UpstreamFetches counts provider player_api calls by action and outcome
// (ok, transport_error, format_error).
var UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "telecast_upstream_fetch_total",
	Help: "Provider API fetches by action and outcome.",
}, []string{"action", "outcome"})

// Refreshes counts refresh-or-read units that actually refreshed, by
// resource key prefix and outcome (ok, fetch_error, store_error).
var Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "telecast_refresh_total",
	Help: "Catalog refresh units by resource and outcome.",
}, []string{"resource", "outcome"})

// ArtworkDownloads counts icon/backdrop downloads by outcome (ok, error).
var ArtworkDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "telecast_artwork_downloads_total",
	Help: "Artwork cache downloads by outcome.",
}, []string{"outcome"})

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an HTTP handler to record request counts and latency.
// The path label uses the matched mux pattern when available so label
// cardinality stays bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		path := routeLabel(r)
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(dur)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel prefers the matched ServeMux pattern ("/film/{id}") over the
// raw URL path, and truncates unmatched paths to keep labels short.
func routeLabel(r *http.Request) string {
	if p := r.Pattern; p != "" {
		if _, after, ok := strings.Cut(p, " "); ok {
			return after
		}
		return p
	}
	path := r.URL.Path
	if len(path) > 64 {
		return path[:64] + "..."
	}
	return path
}
