// Package pipeline drives the per-state run: resolve the boundary, fetch the
// stack, reclassify it, export one raster per year, animate, and summarise.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aus-land-clearing/landcover/internal/animate"
	"github.com/aus-land-clearing/landcover/internal/boundary"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/export"
	"github.com/aus-land-clearing/landcover/internal/geo"
	"github.com/aus-land-clearing/landcover/internal/geotiff"
	"github.com/aus-land-clearing/landcover/internal/index"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
	"github.com/aus-land-clearing/landcover/internal/publish"
	"github.com/aus-land-clearing/landcover/internal/raster"
	"github.com/aus-land-clearing/landcover/internal/reclass"
	"github.com/aus-land-clearing/landcover/internal/source"
	"github.com/aus-land-clearing/landcover/internal/trend"
)

// GetLogger returns the pipeline module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}

// Fetcher obtains a stack for a request. *source.Chain implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req source.Request) (*source.Result, error)
}

// Uploader publishes run artifacts. *publish.Publisher implements it.
type Uploader interface {
	Upload(ctx context.Context, runID, root string, files []string) ([]publish.Object, error)
}

// RunRecorder stores per-state run history. *index.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *index.Run) error
}

// Runner executes state runs with one fixed configuration.
type Runner struct {
	settings  *conf.Settings
	fetcher   Fetcher
	uploader  Uploader
	runs      RunRecorder
	metrics   *metrics.PipelineMetrics
	log       logger.Logger
	now       func() time.Time
	crs       geo.CRS
	classMap  reclass.ClassMap
	scheme    reclass.Scheme
	codec     geotiff.Compression
	outputDir string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithUploader publishes artifacts after each batch run.
func WithUploader(u Uploader) Option {
	return func(r *Runner) { r.uploader = u }
}

// WithRunRecorder stores one history row per state run.
func WithRunRecorder(rec RunRecorder) Option {
	return func(r *Runner) { r.runs = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New validates the processing settings once so configuration mistakes fail
// before any state is attempted.
func New(settings *conf.Settings, fetcher Fetcher, opts ...Option) (*Runner, error) {
	if settings == nil || fetcher == nil {
		return nil, configError(fmt.Errorf("runner needs settings and a fetcher"))
	}
	l := &settings.Landcover

	crs, err := geo.ParseCRS(l.CRS)
	if err != nil {
		return nil, err
	}
	scheme, err := reclass.ParseScheme(l.Scheme)
	if err != nil {
		return nil, configError(err)
	}
	codec, err := geotiff.ParseCompression(l.Processing.Compression)
	if err != nil {
		return nil, configError(err)
	}
	classMap := reclass.ClassMap{
		Woody:    l.ClassesMap.Woody,
		NonWoody: l.ClassesMap.NonWoody,
		Other:    l.ClassesMap.Other,
	}
	if classMap.IsZero() {
		classMap = reclass.DefaultClassMap()
	}

	r := &Runner{
		settings:  settings,
		fetcher:   fetcher,
		now:       time.Now,
		crs:       crs,
		classMap:  classMap,
		scheme:    scheme,
		codec:     codec,
		outputDir: l.OutputDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = GetLogger()
	}
	return r, nil
}

// OutputDir is the root directory of all artifacts.
func (r *Runner) OutputDir() string {
	return r.outputDir
}

// BoundaryPath returns the boundary file used for state.
func (r *Runner) BoundaryPath(state string) string {
	if p, ok := r.settings.Landcover.AOIPath(state); ok && p != "" {
		return p
	}
	return boundary.DefaultPath(r.settings.Boundary.OutputDir, state)
}

// RasterPath is where the raster for one state and year is written.
func (r *Runner) RasterPath(state string, year int) string {
	return filepath.Join(r.outputDir, state, export.FileName(state, year))
}

// AnimationPath is where the state's animation is written.
func (r *Runner) AnimationPath(state string) string {
	format := strings.ToLower(r.settings.Landcover.Animation.Format)
	if format == "" {
		format = animate.FormatGIF
	}
	return filepath.Join(r.outputDir, state+"_woody_timeseries."+format)
}

// stage times fn and records its duration.
func (r *Runner) stage(name string, fn func() error) error {
	start := r.now()
	err := fn()
	r.metrics.ObserveStage(name, r.now().Sub(start).Seconds())
	return err
}

// Run processes one state. The returned report is never nil. The error is
// non-nil when the state ended in Error before any year was exported, or when
// ctx was cancelled; per-year export failures are only recorded in the report.
func (r *Runner) Run(ctx context.Context, state string, years []int) (*StateReport, error) {
	state = strings.ToLower(state)
	years = slices.Compact(slices.Sorted(slices.Values(years)))
	report := &StateReport{
		State:          state,
		RequestedYears: years,
		ExportedYears:  []int{},
		Started:        r.now(),
	}
	log := r.log.With(logger.String("state", state))
	m := newMachine(report, log, r.now)

	err := r.stage(metrics.StageWholeState, func() error {
		return r.run(ctx, m, log)
	})
	report.Finished = r.now()
	r.metrics.RecordYears(state, len(report.RequestedYears), len(report.ExportedYears),
		len(report.FailedYears)+len(report.NoDataYears), len(report.SubstitutedYears))
	r.metrics.RecordState(state, report.Outcome(), report.Synthetic)

	if err != nil {
		log.Error("state run failed",
			logger.String("stage", report.ErrorStage),
			logger.Error(err))
		return report, err
	}
	log.Info("state run finished",
		logger.String("years", report.Progress()),
		logger.String("final_state", string(report.FinalState)),
		logger.Bool("synthetic", report.Synthetic))
	return report, nil
}

func (r *Runner) run(ctx context.Context, m *machine, log logger.Logger) error {
	report := m.report
	state := report.State
	l := &r.settings.Landcover
	nodata := l.Processing.NodataValue

	if len(report.RequestedYears) == 0 {
		err := validationError(fmt.Errorf("no years requested"), state)
		m.fail(metrics.StageLoadAOI, err)
		return err
	}

	var aoi *geo.AreaOfInterest
	err := r.stage(metrics.StageLoadAOI, func() error {
		var err error
		aoi, err = geo.LoadAOI(r.BoundaryPath(state),
			geo.WithBuffer(l.Processing.BufferDistance),
			geo.WithLogger(log))
		return err
	})
	if err != nil {
		report.MissingBoundary = errors.Is(err, geo.ErrBoundaryNotFound)
		m.fail(metrics.StageLoadAOI, err)
		return err
	}
	m.to(StateAOILoaded)

	var res *source.Result
	err = r.stage(metrics.StageFetch, func() error {
		var err error
		res, err = r.fetcher.Fetch(ctx, source.Request{
			State:      state,
			AOI:        aoi,
			StartYear:  report.RequestedYears[0],
			EndYear:    report.RequestedYears[len(report.RequestedYears)-1],
			ProductID:  l.ProductID,
			Resolution: l.Resolution,
			CRS:        r.crs,
		})
		return err
	})
	if err != nil {
		m.fail(metrics.StageFetch, err)
		return err
	}
	report.Source = res.Strategy
	report.Synthetic = res.Synthetic()
	if report.Synthetic {
		log.Warn("stack is synthetic, outputs are not representative",
			logger.String("strategy", res.Strategy))
	}
	m.to(StateFetched)

	var stack *raster.DataArray
	err = r.stage(metrics.StageReclassify, func() error {
		out, err := reclass.Reclassify(res.Dataset,
			reclass.WithClassMap(r.classMap),
			reclass.WithScheme(r.scheme),
			reclass.WithNodata(int32(nodata)),
			reclass.WithLogger(log))
		if err != nil {
			return err
		}
		da, ok := out.(*raster.DataArray)
		if !ok {
			return validationError(fmt.Errorf("reclassified %s, want a labelled array", raster.Kind(out)), state)
		}
		stack = da
		return nil
	})
	if err != nil {
		m.fail(metrics.StageReclassify, err)
		return err
	}
	m.to(StateReclassified)

	_ = r.stage(metrics.StageExport, func() error {
		r.exportYears(ctx, m, stack, res.MissingYears, log)
		return nil
	})
	if err := ctx.Err(); err != nil {
		m.fail(metrics.StageExport, err)
		return err
	}
	if len(report.ExportedYears) == 0 {
		err := errors.Newf("no years exported for %s", state).
			Component("pipeline").
			Category(errors.CategoryExport).
			Context("state", state).
			Context("failed_years", len(report.FailedYears)).
			Context("no_data_years", len(report.NoDataYears)).
			Build()
		m.fail(metrics.StageExport, err)
		return err
	}
	m.to(StateExported)

	if l.Animation.Enabled {
		m.to(StateAnimating)
		_ = r.stage(metrics.StageAnimate, func() error {
			r.animate(ctx, report, log)
			return nil
		})
	}

	if r.settings.Trend.Enabled {
		_ = r.stage(metrics.StageTrend, func() error {
			report.Trend = r.trend(stack, res.MissingYears, log)
			return nil
		})
	}

	m.to(StateDone)
	return nil
}

// exportYears writes one raster per requested year. A failed year is logged
// and recorded; the remaining years are still attempted. Years in noData are
// skipped, no raster is written for them.
func (r *Runner) exportYears(ctx context.Context, m *machine, stack *raster.DataArray, noData []int, log logger.Logger) {
	report := m.report
	state := report.State
	l := &r.settings.Landcover

	for _, year := range report.RequestedYears {
		if ctx.Err() != nil {
			return
		}
		if slices.Contains(noData, year) {
			log.Warn("no data available for year, skipping",
				logger.Int("year", year),
				logger.String("stage", metrics.StageExport),
				logger.String("source", report.Source))
			report.NoDataYears = append(report.NoDataYears, year)
			continue
		}
		m.exporting(year)
		res, err := export.Export(stack, year, r.RasterPath(state, year),
			export.WithNodata(l.Processing.NodataValue),
			export.WithCompression(r.codec),
			export.WithDefaultCRS(r.crs.String()),
			export.WithState(state),
			export.WithLogger(log))
		if err != nil {
			log.Error("year export failed, continuing with remaining years",
				logger.Int("year", year),
				logger.String("stage", metrics.StageExport),
				logger.Error(err))
			report.FailedYears = append(report.FailedYears, year)
			if report.YearErrors == nil {
				report.YearErrors = make(map[int]string)
			}
			report.YearErrors[year] = err.Error()
			continue
		}
		report.ExportedYears = append(report.ExportedYears, year)
		report.Files = append(report.Files, res.Path)
		if res.Substituted {
			report.SubstitutedYears = append(report.SubstitutedYears, year)
		}
	}
}

// animate assembles the exported rasters. Failures leave the run intact.
func (r *Runner) animate(ctx context.Context, report *StateReport, log logger.Logger) {
	a := r.settings.Landcover.Animation
	out := r.AnimationPath(report.State)
	opts := []animate.Option{
		animate.WithLoop(a.Loop),
		animate.WithFormat(a.Format),
		animate.WithFFmpegPath(a.FFmpegPath),
		animate.WithLogger(log),
	}
	if a.FPS > 0 {
		opts = append(opts, animate.WithFPS(a.FPS))
	}
	art, err := animate.Animate(ctx, animate.Files(report.Files), out, opts...)
	switch {
	case errors.Is(err, animate.ErrCodecUnavailable):
		log.Warn("animation codec unavailable, skipping animation",
			logger.String("format", a.Format),
			logger.Error(err))
		return
	case err != nil:
		log.Warn("animation failed, skipping",
			logger.String("stage", metrics.StageAnimate),
			logger.Error(err))
		return
	}
	report.Animation = art.Path
	report.AnimationFrames = art.Frames
}

// trend computes woody-fraction statistics over the years that hold data.
// Baseline and comparison default to the first and last of those years.
func (r *Runner) trend(stack *raster.DataArray, noData []int, log logger.Logger) *TrendReport {
	t := r.settings.Trend
	series, err := trend.WoodyFraction(stack, int32(r.settings.Landcover.Processing.NodataValue))
	if err != nil {
		log.Warn("trend analysis skipped", logger.Error(err))
		return nil
	}
	series = slices.DeleteFunc(series, func(p trend.Point) bool {
		return slices.Contains(noData, p.Year)
	})
	out := &TrendReport{Series: series}
	if len(series) == 0 {
		return out
	}

	first, last := series[0].Year, series[len(series)-1].Year
	baseline := trend.Period{Start: first, End: first}
	comparison := trend.Period{Start: last, End: last}
	if len(t.Baseline) == 2 {
		baseline = trend.Period{Start: t.Baseline[0], End: t.Baseline[1]}
	}
	if len(t.Comparison) == 2 {
		comparison = trend.Period{Start: t.Comparison[0], End: t.Comparison[1]}
	}
	if stats, err := trend.ChangeStatistics(series, baseline, comparison); err != nil {
		log.Warn("change statistics unavailable", logger.Error(err))
	} else {
		out.Change = &stats
	}

	out.Events = trend.DetectClearingEvents(series, t.Threshold, t.MinDuration)
	if len(out.Events) > 0 {
		log.Info("possible clearing events detected", logger.Int("events", len(out.Events)))
	}
	return out
}

// RunAll processes states in order and writes the summary. A failing state
// does not stop the batch; cancellation does. Publishing happens after the
// summary is written so the summary itself is uploaded.
func (r *Runner) RunAll(ctx context.Context, states []string, years []int) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.NewString(),
		Started:   r.now(),
		OutputDir: r.outputDir,
	}
	log := r.log.With(logger.String("run_id", sum.RunID))
	log.Info("batch run started",
		logger.Any("states", states),
		logger.Int("years", len(years)))

	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return sum, errors.New(err).
				Component("pipeline").
				Category(errors.CategoryCancellation).
				Context("state", state).
				Build()
		}
		report, _ := r.Run(ctx, state, years)
		sum.States = append(sum.States, report)
		r.recordRun(ctx, sum.RunID, report, log)
	}
	sum.Finished = r.now()

	path := filepath.Join(r.outputDir, SummaryFile)
	if err := sum.WriteFile(path); err != nil {
		return sum, err
	}

	if r.uploader != nil {
		err := r.stage(metrics.StagePublish, func() error {
			objs, err := r.uploader.Upload(ctx, sum.RunID, r.outputDir, append(sum.Artifacts(), path))
			sum.Published = objs
			return err
		})
		if err != nil {
			log.Error("publishing artifacts failed", logger.Error(err))
			sum.PublishError = err.Error()
		}
		// record what was published
		if err := sum.WriteFile(path); err != nil {
			return sum, err
		}
	}

	r.metrics.MarkRunFinished(float64(sum.Finished.Unix()))
	log.Info("batch run finished",
		logger.Int("states", len(sum.States)),
		logger.Duration("elapsed", sum.Finished.Sub(sum.Started)))
	return sum, nil
}

func (r *Runner) recordRun(ctx context.Context, runID string, report *StateReport, log logger.Logger) {
	if r.runs == nil {
		return
	}
	row := &index.Run{
		RunID:            runID,
		State:            report.State,
		Source:           report.Source,
		Synthetic:        report.Synthetic,
		YearsRequested:   len(report.RequestedYears),
		YearsExported:    len(report.ExportedYears),
		YearsFailed:      len(report.FailedYears) + len(report.NoDataYears),
		YearsSubstituted: len(report.SubstitutedYears),
		FinalState:       string(report.FinalState),
		Error:            report.Error,
		StartedAt:        report.Started,
		FinishedAt:       report.Finished,
	}
	if n := len(report.RequestedYears); n > 0 {
		row.StartYear, row.EndYear = report.RequestedYears[0], report.RequestedYears[n-1]
	}
	if err := r.runs.RecordRun(ctx, row); err != nil {
		log.Warn("could not record run history", logger.String("state", report.State), logger.Error(err))
	}
}

func configError(err error) error {
	return errors.New(err).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

func validationError(err error, state string) error {
	return errors.New(err).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Context("state", state).
		Build()
}
