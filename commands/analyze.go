package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sl5234/daylytics/analysis"
)

func newAnalyzeCmd(configPath, logLevel *string) *cobra.Command {
	var (
		date      string
		startDate string
		endDate   string
		mode      string
		useLLM    bool
		emit      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a one-shot analysis and print the result",
		Long: `Analyze retrieves time entries for a date or range, categorizes
them, and prints per-category metrics to stdout. Pass --emit to also
push the results to the configured metrics sink.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := analysis.Request{
				Date:         date,
				StartDate:    startDate,
				EndDate:      endDate,
				ResponseMode: mode,
				UseLLM:       useLLM,
			}
			return runAnalyze(*configPath, *logLevel, req, emit)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Single day to analyze (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startDate, "start", "", "Range start (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&endDate, "end", "", "Range end (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&mode, "mode", "table", "Output mode (metric, text, table)")
	cmd.Flags().BoolVar(&useLLM, "use-llm", false, "Categorize entries with the LLM instead of keyword rules")
	cmd.Flags().BoolVar(&emit, "emit", false, "Also emit results to the configured metrics sink")

	return cmd
}

func runAnalyze(configPath, logLevel string, req analysis.Request, emit bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(logLevel, cfg.App.Debug)

	svc, _, _, err := buildAnalysisService(cfg, emit, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	return printResult(os.Stdout, result)
}

// printResult writes the run result in its response mode.
func printResult(w io.Writer, result *analysis.Result) error {
	switch {
	case result.Text != "":
		_, err := fmt.Fprintln(w, result.Text)
		return err
	case len(result.Table) > 0:
		return printTables(w, result.Table)
	default:
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
}

func printTables(w io.Writer, tables []analysis.DayTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, table := range tables {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", table.Date)
		fmt.Fprintln(tw, "CATEGORY\tSECONDS\tHOURS\tSHARE")
		for _, row := range table.Rows {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.1f%%\n",
				row.Category, row.Seconds, row.Hours, row.Share*100)
		}
	}
	return tw.Flush()
}
