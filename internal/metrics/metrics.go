package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "velora"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls by method and status code.",
		},
		[]string{"method", "code"},
	)

	rentalsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_created_total",
			Help:      "Dress rentals stored.",
		},
	)

	rentalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_rejected_total",
			Help:      "Booking attempts refused, by reason.",
		},
		[]string{"reason"},
	)

	rentalTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rental_status_transitions_total",
			Help:      "Rental status changes by target status.",
		},
		[]string{"status"},
	)

	refunds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refund_amount",
			Help:      "Refunded deposit per cancellation, in currency units.",
			Buckets:   []float64{0, 50000, 100000, 250000, 500000, 1000000, 2500000},
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Background sync tasks by type and result.",
		},
		[]string{"task_type", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			grpcRequests,
			rentalsCreated,
			rentalsRejected,
			rentalTransitions,
			refunds,
			syncTasks,
		)
	})
}

// ObserveHTTP records one finished request.
func ObserveHTTP(endpoint string, code int, took time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func IncRentalCreated() {
	rentalsCreated.Inc()
}

func IncRentalRejected(reason string) {
	rentalsRejected.WithLabelValues(reason).Inc()
}

func IncStatusTransition(status string) {
	rentalTransitions.WithLabelValues(status).Inc()
}

func ObserveRefund(amount int64) {
	refunds.Observe(float64(amount))
}

func IncSyncTask(taskType, result string) {
	syncTasks.WithLabelValues(taskType, result).Inc()
}
