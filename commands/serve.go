package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/events"
	"github.com/sl5234/daylytics/server"
	"github.com/sl5234/daylytics/workflow"
)

func newServeCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analytics HTTP server",
		Long: `Serve exposes the analysis pipeline over HTTP: /analysis runs a
direct analysis, /plan previews a workflow for a prompt, /conversation
plans and executes one, /health reports server state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, *logLevel)
		},
	}
}

func runServe(configPath, logLevel string) error {
	printBanner()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(logLevel, cfg.App.Debug)

	svc, rules, client, err := buildAnalysisService(cfg, true, logger)
	if err != nil {
		return err
	}

	executor := workflow.NewExecutor(logger, workflow.BuiltinTools(svc)...)
	planner := workflow.NewLLMPlanner(client, executor, !cfg.LLM.DisableStaticFallback, logger)

	// Publishing is disabled when no NATS URL is configured.
	publisher, err := events.Connect(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	handler := server.NewHandler(server.HandlerConfig{
		Service:  svc,
		Planner:  planner,
		Executor: executor,
		Events:   publisher,
		SinkName: cfg.Metrics.Backend,
		AppName:  cfg.App.Name,
		Version:  Version,
		Logger:   logger,
	})
	component := server.NewComponent(cfg.Server, handler, logger)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if cfg.Rules.Watch && cfg.Rules.Path != "" {
		watcher, err := analysis.NewRulesWatcher(analysis.RulesWatcherConfig{
			Path:   cfg.Rules.Path,
			Logger: logger,
		}, rules)
		if err != nil {
			return fmt.Errorf("create rules watcher: %w", err)
		}
		if err := watcher.Start(signalCtx); err != nil {
			return fmt.Errorf("watch rules file: %w", err)
		}
		defer watcher.Stop()
		logger.Info("Watching rules file", "path", cfg.Rules.Path)
	}

	if err := component.Start(signalCtx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	logger.Info("Daylytics ready",
		"version", Version,
		"addr", component.Addr(),
		"path_prefix", cfg.Server.PathPrefix,
		"source", cfg.Toggl.Source,
		"sink", cfg.Metrics.Backend)

	// Block until shutdown signal.
	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if err := component.Stop(shutdownTimeout); err != nil {
		logger.Error("Error stopping server", "error", err)
	}

	logger.Info("Daylytics shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║            Daylytics v" + Version + "                    ║")
	fmt.Println("║      Time-Tracking Analytics Service          ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
