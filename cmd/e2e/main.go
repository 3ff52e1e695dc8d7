// Command e2e runs the end-to-end scenarios against an in-process
// daylytics server and reports per-stage results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sl5234/daylytics/test/e2e/config"
	"github.com/sl5234/daylytics/test/e2e/scenarios"
)

const banner = "═══════════════════════════════════════════════════════════════"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		mockLLMURL    string
		outputJSON    bool
		timeout       time.Duration
		globalTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "e2e [scenario]",
		Short: "Run daylytics e2e tests",
		Long: `Run end-to-end tests against an in-process daylytics server.

Available scenarios:
  analysis-csv       - Single-day analysis over a CSV export with a CSV sink
  conversation-flow  - Plan and execute the retrieve/analyze/emit chain from a prompt
  plan-llm           - Plan through the mock LLM, exercising the correction loop
  all                - Run all scenarios (default)

The plan-llm scenario requires the mock LLM server:
  go run ./cmd/mock-llm -fixtures test/fixtures/llm

Examples:
  e2e                                # Run all scenarios
  e2e analysis-csv                   # Run a specific scenario
  e2e --json                         # Output results as JSON
  e2e --mock-llm http://host:11434   # Custom mock LLM URL
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) > 0 {
				name = args[0]
			}

			cfg := &config.Config{
				MockLLMURL:   mockLLMURL,
				SetupTimeout: timeout * 2,
				StageTimeout: timeout,
			}
			return run(name, cfg, outputJSON, globalTimeout)
		},
	}

	cmd.Flags().StringVar(&mockLLMURL, "mock-llm", config.DefaultMockLLMURL, "Mock LLM server URL")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultStageTimeout, "Per-stage timeout")
	cmd.Flags().DurationVar(&globalTimeout, "global-timeout", 10*time.Minute, "Global timeout for all scenarios")

	cmd.AddCommand(listCmd())

	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(`Available scenarios:

  analysis-csv       Single-day analysis over a CSV export with a CSV sink
  conversation-flow  Plan and execute the retrieve/analyze/emit chain from a prompt
  plan-llm           Plan through the mock LLM, exercising the correction loop

Use 'e2e all' to run all scenarios.
`)
		},
	}
}

func run(name string, cfg *config.Config, asJSON bool, globalTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), globalTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	all := []scenarios.Scenario{
		scenarios.NewAnalysisCSVScenario(cfg),
		scenarios.NewConversationFlowScenario(cfg),
		scenarios.NewPlanLLMScenario(cfg),
	}

	toRun := all
	if name != "all" {
		toRun = nil
		for _, s := range all {
			if s.Name() == name {
				toRun = []scenarios.Scenario{s}
				break
			}
		}
		if toRun == nil {
			return fmt.Errorf("unknown scenario: %s", name)
		}
	}

	r := &runner{verbose: !asJSON}
	results := make([]*scenarios.Result, 0, len(toRun))
	for _, sc := range toRun {
		if ctx.Err() != nil {
			r.say("\nTest run interrupted!\n")
			break
		}
		results = append(results, r.runScenario(ctx, sc))
	}

	if asJSON {
		printJSON(results)
	} else {
		printSummary(results)
	}

	for _, res := range results {
		if !res.Success {
			return fmt.Errorf("some scenarios failed")
		}
	}
	if len(results) < len(toRun) {
		return fmt.Errorf("run interrupted")
	}
	return nil
}

// runner executes scenarios and narrates progress unless results are
// going out as JSON.
type runner struct {
	verbose bool
}

func (r *runner) say(format string, args ...any) {
	if r.verbose {
		fmt.Printf(format, args...)
	}
}

func (r *runner) runScenario(ctx context.Context, sc scenarios.Scenario) *scenarios.Result {
	r.say("\n%s\n", banner)
	r.say("Running: %s\n", sc.Name())
	r.say("Description: %s\n", sc.Description())
	r.say("%s\n\n", banner)

	r.say("Setup... ")
	if err := sc.Setup(ctx); err != nil {
		r.say("FAILED: %v\n", err)
		res := failedResult(sc.Name(), fmt.Sprintf("setup failed: %v", err))
		// Release whatever partial setup created.
		if terr := sc.Teardown(ctx); terr != nil {
			res.AddWarning(fmt.Sprintf("teardown failed: %v", terr))
		}
		return res
	}
	r.say("OK\n")

	r.say("Execute... ")
	res, err := sc.Execute(ctx)
	switch {
	case err != nil:
		res = failedResult(sc.Name(), fmt.Sprintf("execution error: %v", err))
		r.say("ERROR: %v\n", err)
	case res.Success:
		r.say("PASSED\n")
	default:
		r.say("FAILED: %s\n", res.Error)
	}

	r.say("Teardown... ")
	if terr := sc.Teardown(ctx); terr != nil {
		res.AddWarning(fmt.Sprintf("teardown failed: %v", terr))
		r.say("WARNING: %v\n", terr)
	} else {
		r.say("OK\n")
	}

	if r.verbose && len(res.Stages) > 0 {
		fmt.Println("\nStages:")
		for _, stage := range res.Stages {
			mark := "✓"
			if !stage.Success {
				mark = "✗"
			}
			fmt.Printf("  %s %s (%dms)\n", mark, stage.Name, stage.Duration.Milliseconds())
			if stage.Error != "" {
				fmt.Printf("      Error: %s\n", stage.Error)
			}
		}
	}

	return res
}

func failedResult(name, msg string) *scenarios.Result {
	res := scenarios.NewResult(name)
	res.Error = msg
	res.AddError(msg)
	res.Complete()
	return res
}

func printJSON(results []*scenarios.Result) {
	out := struct {
		Timestamp time.Time           `json:"timestamp"`
		Results   []*scenarios.Result `json:"results"`
		Summary   struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"summary"`
	}{Timestamp: time.Now(), Results: results}

	out.Summary.Total = len(results)
	for _, r := range results {
		if r.Success {
			out.Summary.Passed++
		} else {
			out.Summary.Failed++
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode results: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSummary(results []*scenarios.Result) {
	fmt.Println("\n" + banner)
	fmt.Println("                          SUMMARY")
	fmt.Println(banner)

	passed := 0
	for _, r := range results {
		mark := "✗ FAILED"
		if r.Success {
			mark = "✓ PASSED"
			passed++
		}
		fmt.Printf("  %s  %s (%dms)\n", mark, r.Name, r.Duration.Milliseconds())
		if !r.Success && r.Error != "" {
			fmt.Printf("           %s\n", truncate(r.Error, 80))
		}
	}

	fmt.Println(strings.Repeat("─", 65))
	fmt.Printf("  Total: %d | Passed: %d | Failed: %d\n", len(results), passed, len(results)-passed)
	fmt.Println(banner)

	if passed < len(results) {
		fmt.Println("\nSome tests failed. Run with --json for detailed output.")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
