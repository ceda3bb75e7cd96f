// Package metrics exposes the storefront's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestsTotal counts HTTP requests by method, route and status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// RequestDuration tracks HTTP request latency per route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BackendRequestDuration tracks round trips to the commerce backend.
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_backend_request_duration_seconds",
			Help:    "Duration of backend API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BackendErrorsTotal counts failed backend calls by error kind.
	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_backend_errors_total",
			Help: "Total number of failed backend API calls",
		},
		[]string{"operation", "kind"},
	)

	// CartMutationsTotal counts cart state transitions by operation
	// and outcome.
	CartMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations",
		},
		[]string{"operation", "outcome"},
	)

	// CartSize reports the number of distinct lines in live carts.
	CartSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_cart_lines",
			Help: "Number of distinct cart lines across active sessions",
		},
	)

	// SessionsActive reports the number of live client sessions.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Number of active client sessions",
		},
	)

	// CatalogRefreshesTotal counts catalog refresh attempts by outcome.
	CatalogRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_refreshes_total",
			Help: "Total number of catalog refresh attempts",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(CartMutationsTotal)
	prometheus.MustRegister(CartSize)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(CatalogRefreshesTotal)
}

// ObserveBackend records one backend round trip.
func ObserveBackend(operation string, start time.Time, err error) {
	BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		BackendErrorsTotal.WithLabelValues(operation, "error").Inc()
	}
}
