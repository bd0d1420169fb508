package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	TasksCompleted   prometheus.Counter
	TasksSkipped     prometheus.Counter
	ImportRowsTotal  *prometheus.CounterVec
	DigestSendsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// New returns the process-wide collector. Instruments register with the
// default registry exactly once, so repeated app construction in tests does
// not trip duplicate-registration panics.
func New() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_http_requests_total",
			Help: "Total HTTP requests by method and status class",
		}, []string{"method", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "comply_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		TasksCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "comply_tasks_completed_total",
			Help: "Total compliance tasks completed",
		}),
		TasksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "comply_tasks_skipped_total",
			Help: "Total compliance tasks skipped",
		}),
		ImportRowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_import_rows_total",
			Help: "CSV import rows processed, labeled by outcome",
		}, []string{"outcome"}),
		DigestSendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_digest_sends_total",
			Help: "Weekly digest send attempts, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
