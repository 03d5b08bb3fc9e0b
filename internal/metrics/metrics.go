// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	AppointmentsBooked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_booked_total",
		Help: "Appointments successfully booked",
	})
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Booking attempts rejected because the slot was taken",
	})

	// Notifications is labelled by result: sent, failed, rejected (breaker open).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Confirmation notifications by result",
		},
		[]string{"result"},
	)

	DoctorCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doctor_cache_requests_total",
			Help: "Doctor cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
