package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "concierge", Name: "intents_resolved_total", Help: "Intent resolutions by winning source"},
		[]string{"source"},
	)
	LLMFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "concierge", Name: "llm_failures_total", Help: "Failed LLM classification attempts"},
		[]string{"provider"},
	)
	BreakerOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "concierge", Name: "breaker_opens_total", Help: "Circuit breaker open transitions"},
		[]string{"provider"},
	)

	WebhookMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "concierge", Name: "webhook_messages_total", Help: "Inbound webhook messages by type"},
		[]string{"type"},
	)
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "concierge", Name: "taxi_bookings_created_total", Help: "Taxi bookings persisted"},
	)
	TripsDispatched = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "concierge", Name: "taxi_trips_dispatched_total", Help: "Batch trips dispatched"},
	)
	DispatchCycles = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "concierge", Name: "dispatch_cycles_total", Help: "Dispatcher corridor scan cycles"},
	)
	TripGroupSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "trip_group_size",
			Help:      "Passengers per dispatched trip",
			Buckets:   []float64{2, 3, 4, 5, 6, 8},
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "concierge", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
