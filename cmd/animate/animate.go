// Package animate implements the "animate" command.
package animate

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aus-land-clearing/landcover/internal/animate"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

// DefaultPattern matches the rasters written by the run command.
const DefaultPattern = "*_woody_*.tif"

// Command creates the animate command.
func Command(settings *conf.Settings) *cobra.Command {
	var pattern, output, format string
	var fps float64
	var loop int

	cmd := &cobra.Command{
		Use:   "animate <dir>",
		Short: "Assemble yearly rasters in a directory into an animation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			a := settings.Landcover.Animation
			if !cmd.Flags().Changed("fps") && a.FPS > 0 {
				fps = a.FPS
			}
			if !cmd.Flags().Changed("loop") {
				loop = a.Loop
			}
			if output == "" {
				if format == "" {
					format = a.Format
				}
				ext := format
				if ext == "" {
					ext = animate.FormatGIF
				}
				output = filepath.Join(dir, filepath.Base(filepath.Clean(dir))+"_woody_timeseries."+ext)
			}

			art, err := animate.Animate(cmd.Context(), animate.Glob(dir, pattern), output,
				animate.WithFPS(fps),
				animate.WithLoop(loop),
				animate.WithFormat(format),
				animate.WithFFmpegPath(a.FFmpegPath),
				animate.WithLogger(logger.Global().Module("animate")))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d frames, %s)\n", art.Path, art.Frames, art.Format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", DefaultPattern, "Glob pattern selecting rasters, frames follow lexical order")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: <dir>/<dir>_woody_timeseries.<format>)")
	cmd.Flags().Float64Var(&fps, "fps", animate.DefaultFPS, "Frames per second")
	cmd.Flags().IntVar(&loop, "loop", 0, "GIF loop count, 0 loops forever")
	cmd.Flags().StringVarP(&format, "format", "f", "", "gif or mp4 (default: --out extension, else config)")

	return cmd
}
