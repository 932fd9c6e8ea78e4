package observability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
)

func TestPipelineMetricsRecording(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordYears("nsw", 3, 2, 1, 1)
	m.Pipeline.RecordState("nsw", metrics.OutcomePartial, true)
	m.Pipeline.ObserveStage(metrics.StageFetch, 1.5)

	assert.InDelta(t, 3.0, testutil.ToFloat64(m.Pipeline.YearsRequested.WithLabelValues("nsw")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Pipeline.YearsExported.WithLabelValues("nsw")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Pipeline.YearsFailed.WithLabelValues("nsw")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Pipeline.YearsSubstituted.WithLabelValues("nsw")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Pipeline.StatesProcessed.WithLabelValues("nsw", metrics.OutcomePartial)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Pipeline.SyntheticStacks.WithLabelValues("nsw")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Pipeline.StageDuration))
}

func TestSourceMetricsRecording(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Source.RecordAttempt("stac", metrics.OutcomeFailure)
	m.Source.IncrementCacheHits()
	m.Source.IncrementCacheMisses()
	m.Source.IncrementCacheMisses()
	m.Source.RecordDownload(2048, 0.2, nil)
	m.Source.RecordDownload(0, 0, errors.New("status 503"))

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Source.StrategyAttempts.WithLabelValues("stac", metrics.OutcomeFailure)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Source.CacheHits), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Source.CacheMisses), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Source.AssetDownloads), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Source.DownloadErrors), 1e-9)
	assert.InDelta(t, 2048.0, testutil.ToFloat64(m.Source.DownloadBytes), 1e-9)
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var p *metrics.PipelineMetrics
	var s *metrics.SourceMetrics

	assert.NotPanics(t, func() {
		p.RecordYears("qld", 1, 1, 0, 0)
		p.RecordState("qld", metrics.OutcomeSuccess, false)
		p.ObserveStage(metrics.StageExport, 0.1)
		p.MarkRunFinished(1)
		s.RecordAttempt("cube", metrics.OutcomeSuccess)
		s.IncrementCacheHits()
		s.RecordDownload(1, 1, nil)
	})
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordYears("vic", 2, 2, 0, 0)

	path := filepath.Join(t.TempDir(), "textfile", "landcover.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `landcover_years_exported_total{state="vic"} 2`)

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.WriteTextfile(path))
}
