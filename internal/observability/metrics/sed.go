package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SEDMetrics contains all Prometheus metrics related to spectral fitting.
type SEDMetrics struct {
	FitsTotal    *prometheus.CounterVec
	FitDuration  prometheus.Histogram
	ReducedChiSq prometheus.Histogram
	registry     *prometheus.Registry
}

// NewSEDMetrics creates a new instance of SEDMetrics.
func NewSEDMetrics(registry *prometheus.Registry) (*SEDMetrics, error) {
	m := &SEDMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize SED metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register SED metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for SEDMetrics.
func (m *SEDMetrics) initMetrics() error {
	m.FitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sed_fits_total",
		Help: "Total number of spectral fits by model and outcome",
	}, []string{"model", "status"})

	m.FitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sed_fit_duration_seconds",
		Help:    "Duration of spectral fit operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	m.ReducedChiSq = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sed_reduced_chi_squared",
		Help:    "Reduced chi-squared of successful spectral fits",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	return nil
}

// RecordFit records the outcome of one model fit.
func (m *SEDMetrics) RecordFit(model, status string, redChiSq float64, d time.Duration) {
	m.FitsTotal.WithLabelValues(model, status).Inc()
	m.FitDuration.Observe(d.Seconds())
	if status == "ok" {
		m.ReducedChiSq.Observe(redChiSq)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *SEDMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FitsTotal.Describe(ch)
	m.FitDuration.Describe(ch)
	m.ReducedChiSq.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SEDMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FitsTotal.Collect(ch)
	m.FitDuration.Collect(ch)
	m.ReducedChiSq.Collect(ch)
}
