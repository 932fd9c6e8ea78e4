package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aus-land-clearing/landcover/cmd/animate"
	"github.com/aus-land-clearing/landcover/cmd/boundaries"
	"github.com/aus-land-clearing/landcover/cmd/config"
	"github.com/aus-land-clearing/landcover/cmd/index"
	"github.com/aus-land-clearing/landcover/cmd/run"
	"github.com/aus-land-clearing/landcover/internal/buildinfo"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled from
// the configuration file before any sub-command runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "landcover",
		Short:         "Annual woody vegetation rasters for Australian states",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		run.Command(settings),
		animate.Command(settings),
		boundaries.Command(settings),
		index.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		if debug {
			settings.Debug = true
		}
		return initialize(settings, build)
	}

	return rootCmd
}

// initialize sets up logging and telemetry once the configuration is known.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	if err := telemetry.InitSentry(settings, build); err != nil {
		// telemetry is optional
		logger.Global().Module("main").Warn("sentry disabled", logger.Error(err))
	}
	return nil
}
