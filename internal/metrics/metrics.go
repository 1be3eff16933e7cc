// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationOutcomes counts create/cancel attempts by result.  The
	// outcome label is "ok" or the error kind (capacity_exhausted, ...).
	ReservationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitnow_reservation_outcomes_total",
			Help: "Reservation create/cancel attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ReservationTxDuration measures the full transaction, lock wait included.
	ReservationTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitnow_reservation_tx_duration_seconds",
			Help:    "Duration of reservation transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitnow_events_published_total",
			Help: "Reservation events handed to the broker, by routing key and result",
		},
		[]string{"routing_key", "result"},
	)

	// HTTPRequestDuration is labelled by the route pattern, not the raw
	// path, to keep cardinality bounded.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitnow_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitnow_response_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitnow_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route",
		},
		[]string{"route"},
	)
)

// ObserveReservation records one coordinator call.
func ObserveReservation(operation, outcome string, started time.Time) {
	ReservationOutcomes.WithLabelValues(operation, outcome).Inc()
	ReservationTxDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
