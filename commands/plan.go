package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sl5234/daylytics/workflow"
)

func newPlanCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <prompt>",
		Short: "Preview the workflow planned for a prompt",
		Long: `Plan asks the LLM to lay out the workflow steps for a prompt and
prints the resulting step chain as JSON without executing it. Without a
reachable model the built-in static plan is returned.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(*configPath, *logLevel, strings.Join(args, " "))
		},
	}
}

func runPlan(configPath, logLevel, prompt string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(logLevel, cfg.App.Debug)

	svc, _, client, err := buildAnalysisService(cfg, false, logger)
	if err != nil {
		return err
	}

	executor := workflow.NewExecutor(logger, workflow.BuiltinTools(svc)...)
	planner := workflow.NewLLMPlanner(client, executor, !cfg.LLM.DisableStaticFallback, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wf, err := planner.Plan(ctx, prompt)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
