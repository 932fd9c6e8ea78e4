package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the per-state run metrics. A nil receiver is a
// valid no-op collector.
type PipelineMetrics struct {
	YearsRequested   *prometheus.CounterVec
	YearsExported    *prometheus.CounterVec
	YearsFailed      *prometheus.CounterVec
	YearsSubstituted *prometheus.CounterVec
	StatesProcessed  *prometheus.CounterVec
	SyntheticStacks  *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	LastRunTimestamp prometheus.Gauge
}

// NewPipelineMetrics creates and registers the pipeline collectors.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.YearsRequested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_years_requested_total",
		Help: "Years requested for export, per state.",
	}, []string{"state"})

	m.YearsExported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_years_exported_total",
		Help: "Yearly rasters written, per state.",
	}, []string{"state"})

	m.YearsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_years_failed_total",
		Help: "Yearly exports that failed, per state.",
	}, []string{"state"})

	m.YearsSubstituted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_years_substituted_total",
		Help: "Yearly rasters written from a best-effort substitute slice, per state.",
	}, []string{"state"})

	m.StatesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_states_processed_total",
		Help: "State runs by outcome.",
	}, []string{"state", "outcome"})

	m.SyntheticStacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_synthetic_stacks_total",
		Help: "Runs that fell back to synthetic data, per state.",
	}, []string{"state"})

	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landcover_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: stageDurationBuckets,
	}, []string{"stage"})

	m.LastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "landcover_last_run_timestamp_seconds",
		Help: "Unix time the last batch run finished.",
	})
}

// RecordYears adds the per-year outcome counts of one state run.
func (m *PipelineMetrics) RecordYears(state string, requested, exported, failed, substituted int) {
	if m == nil {
		return
	}
	m.YearsRequested.WithLabelValues(state).Add(float64(requested))
	m.YearsExported.WithLabelValues(state).Add(float64(exported))
	m.YearsFailed.WithLabelValues(state).Add(float64(failed))
	m.YearsSubstituted.WithLabelValues(state).Add(float64(substituted))
}

// RecordState counts one finished state run.
func (m *PipelineMetrics) RecordState(state, outcome string, synthetic bool) {
	if m == nil {
		return
	}
	m.StatesProcessed.WithLabelValues(state, outcome).Inc()
	if synthetic {
		m.SyntheticStacks.WithLabelValues(state).Inc()
	}
}

// ObserveStage records how long a stage took, in seconds.
func (m *PipelineMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// MarkRunFinished sets the last-run timestamp.
func (m *PipelineMetrics) MarkRunFinished(unixSeconds float64) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(unixSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.YearsRequested.Collect(ch)
	m.YearsExported.Collect(ch)
	m.YearsFailed.Collect(ch)
	m.YearsSubstituted.Collect(ch)
	m.StatesProcessed.Collect(ch)
	m.SyntheticStacks.Collect(ch)
	m.StageDuration.Collect(ch)
	ch <- m.LastRunTimestamp
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.YearsRequested.Describe(ch)
	m.YearsExported.Describe(ch)
	m.YearsFailed.Describe(ch)
	m.YearsSubstituted.Describe(ch)
	m.StatesProcessed.Describe(ch)
	m.SyntheticStacks.Describe(ch)
	m.StageDuration.Describe(ch)
	ch <- m.LastRunTimestamp.Desc()
}
