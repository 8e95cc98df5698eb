// Package metrics provides custom Prometheus metrics for the components of
// the validation pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CrossMatchMetrics contains all Prometheus metrics related to catalogue
// cross-matching.
type CrossMatchMetrics struct {
	MatchesFound     *prometheus.CounterVec
	SourcesDropped   *prometheus.CounterVec
	MatchDuration    prometheus.Histogram
	SeparationArcsec prometheus.Histogram
	registry         *prometheus.Registry
}

// NewCrossMatchMetrics creates a new instance of CrossMatchMetrics.
// It requires a Prometheus registry to register the metrics.
func NewCrossMatchMetrics(registry *prometheus.Registry) (*CrossMatchMetrics, error) {
	m := &CrossMatchMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize cross-match metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register cross-match metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for CrossMatchMetrics.
func (m *CrossMatchMetrics) initMetrics() error {
	m.MatchesFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crossmatch_matches_total",
		Help: "Total number of accepted cross-matches per reference catalogue",
	}, []string{"reference"})

	m.SourcesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crossmatch_dropped_total",
		Help: "Total number of candidate pairs dropped during collision resolution",
	}, []string{"reference"})

	m.MatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossmatch_duration_seconds",
		Help:    "Duration of cross-match operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	m.SeparationArcsec = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossmatch_separation_arcsec",
		Help:    "Angular separation of accepted cross-matches in arcsec",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	return nil
}

// RecordMatch records one accepted cross-match and its separation.
func (m *CrossMatchMetrics) RecordMatch(reference string, separationArcsec float64) {
	m.MatchesFound.WithLabelValues(reference).Inc()
	m.SeparationArcsec.Observe(separationArcsec)
}

// RecordDropped records candidate pairs dropped by collision resolution.
func (m *CrossMatchMetrics) RecordDropped(reference string, count int) {
	m.SourcesDropped.WithLabelValues(reference).Add(float64(count))
}

// RecordDuration records the duration of one cross-match operation.
func (m *CrossMatchMetrics) RecordDuration(d time.Duration) {
	m.MatchDuration.Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *CrossMatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.MatchesFound.Describe(ch)
	m.SourcesDropped.Describe(ch)
	m.MatchDuration.Describe(ch)
	m.SeparationArcsec.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *CrossMatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.MatchesFound.Collect(ch)
	m.SourcesDropped.Collect(ch)
	m.MatchDuration.Collect(ch)
	m.SeparationArcsec.Collect(ch)
}
