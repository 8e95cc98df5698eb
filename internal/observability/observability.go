// Package observability provides Prometheus metrics for monitoring the
// validation pipeline.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radioval/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	CrossMatch *metrics.CrossMatchMetrics
	SED        *metrics.SEDMetrics
	Pipeline   *metrics.PipelineMetrics
	Datastore  *metrics.DatastoreMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	crossMatchMetrics, err := metrics.NewCrossMatchMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create cross-match metrics: %w", err)
	}

	sedMetrics, err := metrics.NewSEDMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create SED metrics: %w", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		CrossMatch: crossMatchMetrics,
		SED:        sedMetrics,
		Pipeline:   pipelineMetrics,
		Datastore:  datastoreMetrics,
	}, nil
}

// RegisterHandlers registers the /metrics endpoint on the given mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
