package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for the artifact store.
type DatastoreMetrics struct {
	Operations   *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	Duration     prometheus.Histogram
	registry     *prometheus.Registry
}

// NewDatastoreMetrics creates a new instance of DatastoreMetrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for DatastoreMetrics.
func (m *DatastoreMetrics) initMetrics() error {
	m.Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datastore_operations_total",
		Help: "Total number of artifact store operations by kind and outcome",
	}, []string{"operation", "outcome"})

	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datastore_cache_lookups_total",
		Help: "Total number of artifact cache lookups by result",
	}, []string{"artifact", "result"})

	m.Duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "datastore_operation_duration_seconds",
		Help:    "Duration of artifact store operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	return nil
}

// RecordOperation records one artifact store operation.
func (m *DatastoreMetrics) RecordOperation(operation, outcome string, d time.Duration) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.Observe(d.Seconds())
}

// RecordCacheLookup records one artifact cache lookup.
func (m *DatastoreMetrics) RecordCacheLookup(artifact, result string) {
	m.CacheLookups.WithLabelValues(artifact, result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.CacheLookups.Describe(ch)
	m.Duration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.CacheLookups.Collect(ch)
	m.Duration.Collect(ch)
}
