// Package telemetry exposes the Prometheus metrics of the long-running
// services.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediaagg"

// Metrics holds the counters shared by the worker and the API.
type Metrics struct {
	reg prometheus.Gatherer

	RecordsIndexed   *prometheus.CounterVec
	RecordsFailed    *prometheus.CounterVec
	RecordsDuplicate *prometheus.CounterVec
	DeadLettered     *prometheus.CounterVec
	BatchSize        prometheus.Histogram
	FlushDuration    prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers every metric on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		RecordsIndexed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_indexed_total",
			Help:      "Records accepted by the search backend.",
		}, []string{"index"}),
		RecordsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Records rejected by the search backend.",
		}, []string{"index"}),
		RecordsDuplicate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Records skipped because they were seen recently.",
		}, []string{"source"}),
		DeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dead_lettered_total",
			Help:      "Messages forwarded to the dead letter topic.",
		}, []string{"reason"}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_batch_size",
			Help:      "Records submitted per bulk request.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_flush_duration_seconds",
			Help:      "Time spent in one bulk request.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveBulk records the outcome of one bulk request.
func (m *Metrics) ObserveBulk(index string, success, failed int, took time.Duration) {
	m.RecordsIndexed.WithLabelValues(index).Add(float64(success))
	m.RecordsFailed.WithLabelValues(index).Add(float64(failed))
	m.BatchSize.Observe(float64(success + failed))
	m.FlushDuration.Observe(took.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}
