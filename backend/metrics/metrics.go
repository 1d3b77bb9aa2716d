// Package metrics holds the Prometheus collectors for URL resolution and the HTTP bridge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups    *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qobuz_url_cache_lookups_total",
				Help: "Resolution cache lookups by result",
			},
			[]string{"result"},
		),
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qobuz_url_fetch_attempts_total",
				Help: "Signed URL fetch attempts by failure class",
			},
			[]string{"class"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qobuz_url_resolutions_total",
				Help: "URL resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qobuz_url_resolve_duration_seconds",
				Help:    "Time spent resolving a playable URL",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qobuz_http_requests_total",
				Help: "HTTP bridge requests by route and status",
			},
			[]string{"route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qobuz_http_request_duration_seconds",
				Help:    "HTTP bridge request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.CacheLookups,
		m.FetchAttempts,
		m.Resolutions,
		m.ResolveDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CacheLookup records a resolution cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// FetchAttempt records one fetch attempt; class is "none" on success.
func (m *Metrics) FetchAttempt(class string) {
	m.FetchAttempts.WithLabelValues(class).Inc()
}

// Resolved records the final outcome of a resolution.
func (m *Metrics) Resolved(outcome string, elapsed time.Duration) {
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveHTTP records one HTTP bridge request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
