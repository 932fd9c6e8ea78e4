// Package config implements the "config" commands for inspecting and
// bootstrapping configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/privacy"
)

// Command creates the config parent command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration files",
	}
	cmd.AddCommand(showCommand(settings), initCommand(), pathsCommand())
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := redact(*settings)
			if out != "" {
				if err := conf.SaveYAMLConfig(out, &redacted); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			}
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}

// redact hides inline credentials. Secret file paths and ${ENV}
// references are shown as configured.
func redact(s conf.Settings) conf.Settings {
	for _, k := range []*string{&s.Publish.AccessKey, &s.Publish.SecretKey} {
		if *k != "" && (*k)[0] != '$' {
			*k = privacy.Redacted
		}
	}
	if s.Sentry.DSN != "" && s.Sentry.DSN[0] != '$' {
		s.Sentry.DSN = privacy.RedactURL(s.Sentry.DSN)
	}
	if s.Landcover.Cube.DSN != "" {
		s.Landcover.Cube.DSN = privacy.ScrubMessage(s.Landcover.Cube.DSN)
	}
	return s
}

func initCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		// must not load (and so create) a config first
		PersistentPreRunE: skipLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := conf.ConfigFileName
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf("%s already exists, use --force to overwrite", path).
					Component("cli").
					Category(errors.CategoryValidation).
					Build()
			}
			data, err := conf.DefaultConfigYAML()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errors.New(err).Component("cli").Category(errors.CategoryFileIO).Build()
			}
			if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // no secrets in defaults
				return errors.New(err).Component("cli").Category(errors.CategoryFileIO).Build()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func skipLoad(*cobra.Command, []string) error { return nil }

func pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short:             "List the directories searched for " + conf.ConfigFileName,
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := conf.SearchPaths()
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(p, conf.ConfigFileName))
			}
			return nil
		},
	}
}
