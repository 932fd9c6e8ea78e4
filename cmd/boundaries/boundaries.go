// Package boundaries implements the "boundaries" command, which downloads
// state outlines from OpenStreetMap.
package boundaries

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/aus-land-clearing/landcover/internal/boundary"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/httpclient"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/pipeline"
)

// fetcher is the part of *boundary.Fetcher used here.
type fetcher interface {
	Fetch(ctx context.Context, state string) (orb.MultiPolygon, error)
}

// Command creates the boundaries command.
func Command(settings *conf.Settings) *cobra.Command {
	var state, outDir string

	cmd := &cobra.Command{
		Use:   "boundaries",
		Short: "Download state boundaries from OpenStreetMap as GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := settings.Boundary
			hc := httpclient.New(&httpclient.Config{DefaultTimeout: b.Timeout})
			defer hc.Close()
			// go-overpass takes a plain client; keep the retrying transport
			overpassHTTP := &http.Client{Transport: hc.HTTPClient().Transport, Timeout: b.Timeout}
			f := boundary.NewFetcher(b.Endpoint, b.Timeout, overpassHTTP,
				boundary.WithLogger(logger.Global().Module("boundary")))
			return fetchAll(cmd.Context(), f, settings, state, outDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&state, "state", "s", pipeline.AllStates, "State code, comma list, or all")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write <state>.geojson here instead of the configured boundary paths")

	return cmd
}

// fetchAll downloads each state and writes it where the run command will
// look for it. States are attempted independently.
func fetchAll(ctx context.Context, f fetcher, settings *conf.Settings, stateFlag, outDir string, out io.Writer) error {
	states, err := pipeline.ResolveStates(stateFlag, settings.Landcover.States)
	if err != nil {
		return err
	}
	log := logger.Global().Module("boundary")

	var errs []error
	for _, s := range states {
		if err := ctx.Err(); err != nil {
			return err
		}
		mp, err := f.Fetch(ctx, s)
		if err != nil {
			log.Error("boundary fetch failed", logger.String("state", s), logger.Error(err))
			fmt.Fprintf(out, "%s: failed: %v\n", s, err)
			errs = append(errs, err)
			continue
		}
		path := destination(settings, s, outDir)
		if err := boundary.Write(path, s, mp); err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", s, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s: wrote %s (%d polygons)\n", s, path, len(mp))
	}
	return errors.Join(errs...)
}

func destination(settings *conf.Settings, state, outDir string) string {
	if outDir != "" {
		return boundary.DefaultPath(outDir, state)
	}
	if p, ok := settings.Landcover.AOIPath(state); ok && p != "" {
		return p
	}
	return boundary.DefaultPath(settings.Boundary.OutputDir, state)
}
