package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the validation pipeline as
// a whole: per-branch outcomes and end-to-end timings.
type PipelineMetrics struct {
	BranchesTotal   *prometheus.CounterVec
	MetricOutcomes  *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	SourcesFiltered prometheus.Gauge
	registry        *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for PipelineMetrics.
func (m *PipelineMetrics) initMetrics() error {
	m.BranchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_branches_total",
		Help: "Total number of reference-catalogue branches by outcome",
	}, []string{"outcome"})

	m.MetricOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_metric_outcomes_total",
		Help: "Total number of validation metrics by name and result",
	}, []string{"metric", "result"})

	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_run_duration_seconds",
		Help:    "Duration of complete validation runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	m.SourcesFiltered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_filtered_sources",
		Help: "Number of primary-catalogue sources remaining after filtering",
	})

	return nil
}

// RecordBranch records the outcome of one reference-catalogue branch.
func (m *PipelineMetrics) RecordBranch(outcome string) {
	m.BranchesTotal.WithLabelValues(outcome).Inc()
}

// RecordMetricOutcome records the result of one validation metric.
func (m *PipelineMetrics) RecordMetricOutcome(metric, result string) {
	m.MetricOutcomes.WithLabelValues(metric, result).Inc()
}

// RecordRun records a completed validation run.
func (m *PipelineMetrics) RecordRun(d time.Duration) {
	m.RunDuration.Observe(d.Seconds())
}

// SetFilteredSources records the post-filter primary source count.
func (m *PipelineMetrics) SetFilteredSources(n int) {
	m.SourcesFiltered.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BranchesTotal.Describe(ch)
	m.MetricOutcomes.Describe(ch)
	m.RunDuration.Describe(ch)
	m.SourcesFiltered.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BranchesTotal.Collect(ch)
	m.MetricOutcomes.Collect(ch)
	m.RunDuration.Collect(ch)
	m.SourcesFiltered.Collect(ch)
}
