package scenarios

import (
	"context"
	"fmt"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/test/e2e/config"
	"github.com/sl5234/daylytics/workflow"
)

// AnalysisCSVScenario drives POST /analysis against a server reading a
// CSV export fixture and writing to a CSV sink: run an analysis for a
// single day, check the per-category totals, check the sink file, then
// ask for the table view.
type AnalysisCSVScenario struct {
	name        string
	description string
	config      *config.Config
	harness     *serverHarness
}

// NewAnalysisCSVScenario creates the analysis scenario.
func NewAnalysisCSVScenario(cfg *config.Config) *AnalysisCSVScenario {
	return &AnalysisCSVScenario{
		name:        "analysis-csv",
		description: "Runs a single-day analysis over a CSV export and verifies totals, sink output, and the table view",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *AnalysisCSVScenario) Name() string { return s.name }

// Description returns the scenario description.
func (s *AnalysisCSVScenario) Description() string { return s.description }

// Setup starts an in-process server over the export fixture.
func (s *AnalysisCSVScenario) Setup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.SetupTimeout)
	defer cancel()

	h, err := newServerHarness()
	if err != nil {
		return err
	}
	s.harness = h
	return h.start(ctx, workflow.StaticPlanner{})
}

// Execute runs the scenario stages.
func (s *AnalysisCSVScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	runStages(ctx, result, s.config.StageTimeout, []stage{
		{"run-analysis", s.stageRunAnalysis},
		{"verify-sink", s.stageVerifySink},
		{"table-view", s.stageTableView},
	})
	return result, nil
}

// Teardown stops the server and removes the fixtures.
func (s *AnalysisCSVScenario) Teardown(_ context.Context) error {
	if s.harness == nil {
		return nil
	}
	return s.harness.stop()
}

// stageRunAnalysis posts a single-day analysis and checks the
// aggregated metrics.
func (s *AnalysisCSVScenario) stageRunAnalysis(ctx context.Context, result *Result) error {
	res, err := s.harness.api.Analyze(ctx, analysis.Request{Date: exportDate})
	if err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}

	if res.RunID == "" {
		return fmt.Errorf("missing run_id")
	}
	result.SetDetail("run_id", res.RunID)

	if res.Status != "completed" {
		return fmt.Errorf("status = %q, want completed", res.Status)
	}
	if len(res.Dates) != 1 || res.Dates[0] != exportDate {
		return fmt.Errorf("dates = %v, want [%s]", res.Dates, exportDate)
	}
	if len(res.Metrics) != 1 {
		return fmt.Errorf("got %d metrics days, want 1", len(res.Metrics))
	}

	day := res.Metrics[0]
	result.SetDetail("total_seconds", day.TotalSeconds)
	if day.TotalSeconds != 41400 {
		return fmt.Errorf("total seconds = %d, want 41400", day.TotalSeconds)
	}

	want := map[string]int64{
		"Fitness":  3600,
		"Work":     7200,
		"Learning": 1800,
		"Sleep":    28800,
	}
	for category, seconds := range want {
		if day.Totals[category] != seconds {
			return fmt.Errorf("%s = %d seconds, want %d", category, day.Totals[category], seconds)
		}
	}
	if len(day.Totals) != len(want) {
		return fmt.Errorf("got %d categories, want %d: %v", len(day.Totals), len(want), day.Totals)
	}

	// The overnight sleep entry dominates the day.
	if share := day.Distribution["Sleep"]; share < 0.69 || share > 0.70 {
		return fmt.Errorf("sleep share = %.4f, want ~0.6957", share)
	}

	return nil
}

// stageVerifySink checks the CSV sink file written by the run.
func (s *AnalysisCSVScenario) stageVerifySink(_ context.Context, result *Result) error {
	totals, err := s.harness.sinkTotals()
	if err != nil {
		return err
	}

	result.SetDetail("sink_categories", len(totals))
	if len(totals) != 4 {
		return fmt.Errorf("sink has %d categories, want 4: %v", len(totals), totals)
	}
	if totals["Work"] != 7200 {
		return fmt.Errorf("sink Work = %d seconds, want 7200", totals["Work"])
	}
	if totals["Sleep"] != 28800 {
		return fmt.Errorf("sink Sleep = %d seconds, want 28800", totals["Sleep"])
	}

	return nil
}

// stageTableView asks for the table response mode and checks the row
// ordering.
func (s *AnalysisCSVScenario) stageTableView(ctx context.Context, result *Result) error {
	res, err := s.harness.api.Analyze(ctx, analysis.Request{
		Date:         exportDate,
		ResponseMode: "table",
	})
	if err != nil {
		return fmt.Errorf("run table analysis: %w", err)
	}

	if len(res.Table) != 1 {
		return fmt.Errorf("got %d day tables, want 1", len(res.Table))
	}
	table := res.Table[0]
	if table.Date != exportDate {
		return fmt.Errorf("table date = %q, want %s", table.Date, exportDate)
	}
	if len(table.Rows) != 4 {
		return fmt.Errorf("got %d table rows, want 4", len(table.Rows))
	}

	// Rows are ordered by time spent, descending.
	if table.Rows[0].Category != "Sleep" {
		return fmt.Errorf("top row = %q, want Sleep", table.Rows[0].Category)
	}
	if table.Rows[0].Hours != 8.0 {
		return fmt.Errorf("top row hours = %.2f, want 8.00", table.Rows[0].Hours)
	}
	result.SetDetail("top_category", table.Rows[0].Category)

	return nil
}
