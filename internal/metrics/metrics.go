// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_bookings_created_total",
		Help: "The total number of confirmed bookings",
	})
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_bookings_cancelled_total",
		Help: "The total number of cancelled bookings",
	})
	BookingsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_bookings_completed_total",
		Help: "The total number of bookings marked completed after arrival",
	})
	// BookingFailures is labelled by reason: validation, not_found, not_bookable, insufficient, conflict, internal.
	BookingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightbooking_booking_failures_total",
		Help: "Booking requests that did not produce a booking",
	}, []string{"reason"})
	SeatsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_seats_reserved_total",
		Help: "Seats taken out of inventory by bookings",
	})
	SeatsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_seats_released_total",
		Help: "Seats returned to inventory by cancellations",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_outbox_events_published_total",
		Help: "The total number of outbox events published to Kafka",
	})
	OutboxPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightbooking_outbox_publish_errors_total",
		Help: "The total number of failed outbox publish attempts",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightbooking_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightbooking_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
