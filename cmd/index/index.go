// Package index implements the "index" commands that maintain the local
// cube database.
package index

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/index"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// Command creates the index parent command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the local GeoTIFF index used by the cube source",
	}

	cmd.AddCommand(scanCommand(settings), listCommand(settings), runsCommand(settings))

	return cmd
}

func openStore(settings *conf.Settings) (*index.Store, error) {
	c := settings.Landcover.Cube
	return index.Open(index.Config{Driver: c.Driver, Path: c.Path, DSN: c.DSN},
		logger.Global().Module("index"))
}

func scanCommand(settings *conf.Settings) *cobra.Command {
	var product string
	var year int

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Index every GeoTIFF under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if product == "" {
				product = settings.Landcover.ProductID
			}
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := store.Scan(cmd.Context(), args[0], product, year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d\n", res.Indexed, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "Product ID recorded for the tiles (default: configured product)")
	cmd.Flags().IntVar(&year, "year", 0, "Year recorded for the tiles (default: parsed from each file name)")

	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var product string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed tiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rows, err := store.List(cmd.Context(), product)
			if err != nil {
				return err
			}
			printDatasets(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "Only list this product")

	return cmd
}

func runsCommand(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows, 0 for all")

	return cmd
}

func printDatasets(out io.Writer, rows []index.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tYEAR\tCRS\tSIZE\tPATH")
	for _, d := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%dx%d\t%s\n", d.Product, d.Year, d.CRS, d.Width, d.Height, d.Path)
	}
	_ = w.Flush()
}

func printRuns(out io.Writer, runs []index.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tSTATE\tYEARS\tSOURCE\tFINAL")
	for _, r := range runs {
		src := r.Source
		if r.Synthetic {
			src += " (synthetic)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.RunID, r.State,
			r.YearsExported, r.YearsRequested, src, r.FinalState)
	}
	_ = w.Flush()
}
