// Package observability owns the metrics registry for a landcover run.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	Source   *metrics.SourceMetrics
}

// NewMetrics creates a registry and all collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	sourceMetrics, err := metrics.NewSourceMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create source metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Pipeline: pipelineMetrics,
		Source:   sourceMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
// Batch runs have no scrape endpoint, so this is how their metrics leave
// the process.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
