package errors

import (
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool              { return true }

func TestBuildInfersComponentFromCaller(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, "errors", ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderPreservesExplicitFields(t *testing.T) {
	ee := Newf("year %d missing", 2005).
		Component("export").
		Category(CategoryExport).
		Priority(PriorityHigh).
		Context("year", 2005).
		Build()

	assert.Equal(t, "year 2005 missing", ee.Error())
	assert.Equal(t, "export", ee.GetComponent())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, 2005, ee.GetContext()["year"])
	assert.True(t, IsCategory(ee, CategoryExport))
	assert.Equal(t, CategoryExport, CategoryOf(fmt.Errorf("wrap: %w", ee)))
	assert.False(t, IsNotFound(ee))
}

func TestPriority(t *testing.T) {
	assert.Equal(t, PriorityMedium, New(NewStd("x")).Priority("urgent").Build().GetPriority())
	assert.Empty(t, New(NewStd("x")).Priority("").Build().GetPriority())
}

func TestCategoryDetection(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"not found", fmt.Errorf("boundary file not found"), "", CategoryNotFound},
		{"timeout", fmt.Errorf("context deadline exceeded"), "", CategoryTimeout},
		{"cancel", fmt.Errorf("context canceled"), "", CategoryCancellation},
		{"connection", fmt.Errorf("connection refused"), "", CategoryNetwork},
		{"invalid", fmt.Errorf("invalid year range"), "", CategoryValidation},
		{"component fallback", fmt.Errorf("tile grid differs"), "source", CategoryFetch},
		{"inner category wins", New(NewStd("x")).Category(CategoryPublish).Build(), "source", CategoryPublish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestComponentFromFunc(t *testing.T) {
	tests := map[string]string{
		"github.com/aus-land-clearing/landcover/internal/source.(*STAC).Fetch":                "source",
		"github.com/aus-land-clearing/landcover/internal/source.(*STAC).fetchTiles.func1":     "source",
		"github.com/aus-land-clearing/landcover/internal/observability/metrics.(*Source).Add": "observability",
		"github.com/aus-land-clearing/landcover/internal/conf.Load":                           "configuration",
		"github.com/aus-land-clearing/landcover/cmd/run.execute":                              "cli",
		"github.com/other/project.Do":                                                          ComponentUnknown,
	}
	for fn, want := range tests {
		assert.Equal(t, want, componentFromFunc(fn), fn)
	}
}

func TestWrappedSentinelStillMatches(t *testing.T) {
	sentinel := NewStd("empty geometry")
	wrapped := New(fmt.Errorf("load aoi: %w", sentinel)).Category(CategoryGeometry).Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, &EnhancedError{Category: CategoryGeometry}))

	var ee *EnhancedError
	require.True(t, As(fmt.Errorf("outer: %w", wrapped), &ee))
	assert.Equal(t, CategoryGeometry, ee.Category)
}

func TestTelemetryReporterReceivesErrorsOnce(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("s3 upload failed")).Component("publish").Category(CategoryPublish).Build()
	report(ee)

	require.Len(t, reporter.reported, 1)
	assert.Equal(t, "publish", reporter.reported[0].GetComponent())
}

func TestErrorTitleAndLevel(t *testing.T) {
	ee := New(NewStd("x")).Component("source").Category(CategoryFetch).Context("operation", "stac_search").Build()
	assert.Equal(t, "Source raster-fetch stac search", errorTitle(ee))
	assert.Equal(t, sentry.LevelWarning, sentryLevel(ee))

	ee = New(NewStd("x")).Component("export").Category(CategoryExport).Build()
	assert.Equal(t, sentry.LevelError, sentryLevel(ee))

	ee = New(NewStd("x")).Category(CategoryExport).Priority(PriorityCritical).Build()
	assert.Equal(t, sentry.LevelFatal, sentryLevel(ee))
}
