package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sl5234/daylytics/config"
)

func newConfigCmd(configPath, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}
	cmd.AddCommand(newConfigShowCmd(configPath), newConfigInitCmd(logLevel))
	return cmd
}

func newConfigShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Show prints the configuration a command would run with, after all
layers are merged: defaults, the user file, a project daylytics.yaml,
an explicit --config file, and DAYLYTICS_* variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			// Masked so the output can go into a bug report.
			shown := *cfg
			if shown.Toggl.APIToken != "" {
				shown.Toggl.APIToken = "[redacted]"
			}
			if shown.Toggl.Password != "" {
				shown.Toggl.Password = "[redacted]"
			}

			out, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

func newConfigInitCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default user config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel, false)
			path, err := config.NewLoader(logger).EnsureUserConfig()
			if err != nil {
				return err
			}
			cmd.Printf("user config at %s\n", path)
			return nil
		},
	}
}
