package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "barberbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls by method and code.",
		},
		[]string{"method", "code"},
	)

	bookingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_requests_total",
			Help:      "Booking requests by result code.",
		},
		[]string{"result"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Lifecycle transitions by action and result code.",
		},
		[]string{"action", "result"},
	)

	relayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_total",
			Help:      "Outbox events handled by the relay, by outcome.",
		},
		[]string{"outcome"},
	)

	relayLag = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_delivery_lag_seconds",
			Help:      "Time from outbox commit to publish.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	scheduleCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_cache_total",
			Help:      "Schedule cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, bookingRequests, transitions, relayEvents, relayLag, scheduleCache)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncHTTP(route string, status int) {
	httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func IncBookingRequest(result string) {
	bookingRequests.WithLabelValues(result).Inc()
}

func IncTransition(action, result string) {
	transitions.WithLabelValues(action, result).Inc()
}

func IncRelayPublished() { relayEvents.WithLabelValues("published").Inc() }

func IncRelayRetried() { relayEvents.WithLabelValues("retried").Inc() }

func IncRelayFailed() { relayEvents.WithLabelValues("failed").Inc() }

func ObserveRelayLag(d time.Duration) {
	relayLag.Observe(d.Seconds())
}

func CacheHit()  { scheduleCache.WithLabelValues("hit").Inc() }
func CacheMiss() { scheduleCache.WithLabelValues("miss").Inc() }
