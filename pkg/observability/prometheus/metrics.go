package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "procfiled"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Store metrics
	StoreAppendsTotal *prometheus.CounterVec
	StoreAppendBytes  prometheus.Histogram
	StoreReadBytes    prometheus.Histogram
	StoreSegments     prometheus.Gauge
	StoreBytes        prometheus.Gauge
	StoreTeardowns    prometheus.Counter

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		StoreAppendsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "procfile_store_appends_total",
				Help: "Total number of append attempts",
			},
			[]string{"outcome"}, // outcome: ok, oom, copy_fault
		),
		StoreAppendBytes: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "procfile_store_append_bytes",
				Help:    "Stored segment sizes in bytes",
				Buckets: prometheus.ExponentialBuckets(16, 4, 10), // 16B to ~4MB
			},
		),
		StoreReadBytes: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "procfile_store_read_bytes",
				Help:    "Delivered read sizes in bytes",
				Buckets: prometheus.ExponentialBuckets(16, 4, 10),
			},
		),
		StoreSegments: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procfile_store_segments",
				Help: "Current number of stored segments",
			},
		),
		StoreBytes: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "procfile_store_bytes",
				Help: "Current logical stream length in bytes",
			},
		),
		StoreTeardowns: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "procfile_store_teardowns_total",
				Help: "Total number of store teardowns",
			},
		),

		HTTPRequestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "procfile_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procfile_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
