package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	activityLogsTotal        *prometheus.CounterVec
	jobsEnqueuedTotal        *prometheus.CounterVec
	dispatchFailuresTotal    *prometheus.CounterVec
	deliveriesTotal          *prometheus.CounterVec
	deliveryLatencySeconds   *prometheus.HistogramVec
	sweepRunsTotal           *prometheus.CounterVec
	missingLogsDetectedGauge prometheus.Gauge
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the tracker.
func RegisterMetrics() {
	registerOnce.Do(func() {
		activityLogsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_logs_created_total",
			Help: "Activity log create attempts by result.",
		}, []string{"result"})

		jobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_enqueued_total",
			Help: "Notification jobs placed on the queue.",
		}, []string{"type"})

		dispatchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Notification dispatches that could not reach the queue.",
		}, []string{"type"})

		deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Notification delivery outcomes by job type.",
		}, []string{"type", "outcome"})

		deliveryLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency of a single delivery attempt.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"type"})

		sweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "missing_log_sweeps_total",
			Help: "Scheduled missing-log sweeps by outcome.",
		}, []string{"outcome"})

		missingLogsDetectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "missing_logs_detected",
			Help: "Missing activity logs found by the most recent sweep.",
		})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ops_http_requests_total",
			Help: "Requests served by the ops HTTP surface.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ops_http_request_duration_seconds",
			Help:    "Latency of ops HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			activityLogsTotal,
			jobsEnqueuedTotal,
			dispatchFailuresTotal,
			deliveriesTotal,
			deliveryLatencySeconds,
			sweepRunsTotal,
			missingLogsDetectedGauge,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// ActivityLogsCreated exposes the counter of activity log create attempts.
func ActivityLogsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return activityLogsTotal
}

// JobsEnqueued exposes the counter of enqueued notification jobs.
func JobsEnqueued() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsEnqueuedTotal
}

// DispatchFailures exposes the counter of swallowed dispatch failures.
func DispatchFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return dispatchFailuresTotal
}

// Deliveries exposes the counter of delivery outcomes.
func Deliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return deliveriesTotal
}

// DeliveryLatency exposes the delivery attempt histogram.
func DeliveryLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return deliveryLatencySeconds
}

// SweepRuns exposes the counter of scheduler sweeps.
func SweepRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepRunsTotal
}

// MissingLogsDetected exposes the gauge of missing logs in the last sweep.
func MissingLogsDetected() prometheus.Gauge {
	RegisterMetrics()
	return missingLogsDetectedGauge
}

// HTTPRequests exposes the counter of ops HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the ops HTTP latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
