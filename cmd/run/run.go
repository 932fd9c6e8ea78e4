// Package run implements the "run" command: the full per-state export.
package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/httpclient"
	"github.com/aus-land-clearing/landcover/internal/index"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/observability"
	"github.com/aus-land-clearing/landcover/internal/pipeline"
	"github.com/aus-land-clearing/landcover/internal/publish"
	"github.com/aus-land-clearing/landcover/internal/source"
)

type options struct {
	state  string
	years  string
	strict bool
}

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export yearly woody rasters and an animation per state",
		Long: "Loads each state's boundary, obtains the annual land-cover stack, reclassifies it " +
			"to woody/non-woody, writes one GeoTIFF per year and animates them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), settings, o, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&o.state, "state", "s", pipeline.AllStates, "State code (act, nsw, nt, qld, sa, tas, vic, wa), comma list, or all")
	cmd.Flags().StringVarP(&o.years, "years", "y", "", "Year or inclusive range, e.g. 2020 or 2020-2023 (default: configured range)")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Fail a state instead of falling back to synthetic data")

	return cmd
}

func execute(ctx context.Context, settings *conf.Settings, o *options, out io.Writer) error {
	log := logger.Global().Module("run")
	l := &settings.Landcover

	states, err := pipeline.ResolveStates(o.state, l.States)
	if err != nil {
		return err
	}
	years, err := pipeline.ParseYears(o.years, l.Years())
	if err != nil {
		return err
	}

	var m *observability.Metrics
	if settings.Metrics.Enabled {
		if m, err = observability.NewMetrics(); err != nil {
			return err
		}
	}

	deps := source.Deps{
		HTTP:   httpclient.New(&httpclient.Config{DefaultTimeout: l.STAC.Timeout, MaxRetries: l.STAC.MaxRetries}),
		Logger: logger.Global().Module("source"),
		Strict: o.strict,
	}
	defer deps.HTTP.Close()
	var runnerOpts []pipeline.Option
	if m != nil {
		deps.Metrics = m.Source
		runnerOpts = append(runnerOpts, pipeline.WithMetrics(m.Pipeline))
	}

	if l.Cube.Enabled {
		store, err := index.Open(index.Config{Driver: l.Cube.Driver, Path: l.Cube.Path, DSN: l.Cube.DSN}, nil)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		deps.Index = store
		runnerOpts = append(runnerOpts, pipeline.WithRunRecorder(store))
	}

	if settings.Publish.Enabled {
		cfg, err := publish.FromSettings(settings.Publish)
		if err != nil {
			return err
		}
		pub, err := publish.New(ctx, cfg)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, pipeline.WithUploader(pub))
	}

	chain, err := source.Build(l, deps)
	if err != nil {
		return err
	}
	runner, err := pipeline.New(settings, chain, runnerOpts...)
	if err != nil {
		return err
	}

	if missing := missingBoundaries(runner, states); len(missing) > 0 {
		fmt.Fprintln(out, "Missing boundary files:")
		for _, line := range missing {
			fmt.Fprintln(out, "  "+line)
		}
		fmt.Fprintf(out, "Fetch them with: landcover boundaries --state %s\n", strings.Join(states, ","))
		return errors.Newf("%d boundary file(s) missing", len(missing)).
			Component("run").
			Category(errors.CategoryNotFound).
			Build()
	}

	log.Info("starting run",
		logger.Any("states", states),
		logger.Int("start_year", years[0]),
		logger.Int("end_year", years[len(years)-1]),
		logger.Any("strategies", chain.Strategies()))

	sum, runErr := runner.RunAll(ctx, states, years)
	if sum != nil {
		printSummary(out, sum)
	}
	if m != nil {
		if err := m.WriteTextfile(settings.Metrics.Textfile); err != nil {
			log.Warn("could not write metrics textfile", logger.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	if code := sum.ExitCode(l.Processing.RequireRealData); code != 0 {
		return errors.Newf("run finished with failures, see %s", filepath.Join(runner.OutputDir(), pipeline.SummaryFile)).
			Component("run").
			Category(errors.CategoryExport).
			Context("run_id", sum.RunID).
			Build()
	}
	return nil
}

// missingBoundaries lists states whose boundary file does not exist.
func missingBoundaries(r *pipeline.Runner, states []string) []string {
	var missing []string
	for _, s := range states {
		path := r.BoundaryPath(s)
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, fmt.Sprintf("%s: %s", s, path))
		}
	}
	return missing
}

func printSummary(out io.Writer, sum *pipeline.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tYEARS\tSOURCE\tSTATUS\tANIMATION")
	for _, r := range sum.States {
		src := r.Source
		if src == "" {
			src = "-"
		}
		if r.Synthetic {
			src += " (synthetic)"
		}
		status := string(r.FinalState)
		if r.Error != "" {
			status += ": " + r.Error
		}
		if len(r.NoDataYears) > 0 {
			status += fmt.Sprintf(" (no data: %v)", r.NoDataYears)
		}
		anim := r.Animation
		if anim == "" {
			anim = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.State, r.Progress(), src, status, anim)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "run %s\n", sum.RunID)
	if sum.PublishError != "" {
		fmt.Fprintf(out, "publish failed: %s\n", sum.PublishError)
	} else if len(sum.Published) > 0 {
		fmt.Fprintf(out, "published %d objects\n", len(sum.Published))
	}
}
