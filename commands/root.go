// Package commands implements the daylytics command-line interface.
// Each subcommand lives in its own file: serve runs the HTTP API,
// analyze performs a one-shot analysis, plan previews a workflow.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sl5234/daylytics/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "daylytics"
)

// Execute runs the root command. Called from main.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the daylytics command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Time-tracking analytics for Toggl Track",
		Long: `Daylytics retrieves time entries from Toggl Track (API or local CSV
exports), assigns each entry to a category via keyword rules or an LLM,
aggregates per-category totals for each day, and emits the results to a
metrics sink (Prometheus Pushgateway or a CSV file).

Run "daylytics serve" to expose the pipeline over HTTP, or
"daylytics analyze" for a one-shot analysis from the command line.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(&configPath, &logLevel),
		newAnalyzeCmd(&configPath, &logLevel),
		newPlanCmd(&configPath, &logLevel),
		newConfigCmd(&configPath, &logLevel),
		newVersionCmd(),
	)

	return cmd
}

// setupLogging configures the default slog logger from the level flag.
// Debug in the config file wins over a higher flag level.
func setupLogging(logLevel string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig resolves configuration for a command run. An explicit
// --config path is the only file layer; otherwise the layered lookup
// applies (user config, then a project daylytics.yaml found walking up
// from the working directory). DAYLYTICS_* variables overlay
// credentials either way.
func loadConfig(configPath string) (*config.Config, error) {
	loader := config.NewLoader(slog.Default())
	if configPath != "" {
		cfg, err := loader.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	return loader.Load()
}
