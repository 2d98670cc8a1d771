package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metric names.
const (
	MetricStoreWritesTotal        = "envirotrack_store_writes_total"
	MetricStoreQueueDepth         = "envirotrack_store_queue_depth"
	MetricOperationsTotal         = "envirotrack_operations_total"
	MetricOperationDurationSecond = "envirotrack_operation_duration_seconds"
)

// MetricsRecorder receives service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Metrics publishes store and service metrics to Prometheus. A nil *Metrics
// records nothing.
type Metrics struct {
	storeWrites *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. With a nil
// registerer the collectors still count but are not exposed.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStoreWritesTotal,
			Help: "Persisted root state writes by result.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricStoreQueueDepth,
			Help: "Writes waiting for the store writer.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricOperationsTotal,
			Help: "Service operations by name and status.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricOperationDurationSecond,
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.storeWrites, m.queueDepth, m.operations, m.durations)
	}
	return m
}

// Observe records a service operation outcome.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if m == nil || operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) storeWrite(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.storeWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
