package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/toggl"
)

type toolStubSource struct {
	entries []toggl.TimeEntry
	err     error
	calls   int
}

func (s *toolStubSource) GetTimeEntries(context.Context, time.Time, time.Time) ([]toggl.TimeEntry, error) {
	s.calls++
	return s.entries, s.err
}

type toolStubSink struct {
	emitted []analysis.MetricsData
	err     error
}

func (s *toolStubSink) Name() string { return "stub" }

func (s *toolStubSink) Emit(_ context.Context, data analysis.MetricsData) error {
	if s.err != nil {
		return s.err
	}
	s.emitted = append(s.emitted, data)
	return nil
}

func newToolService(t *testing.T, src analysis.EntrySource, sink analysis.MetricsSink) *analysis.Service {
	t.Helper()
	svc, err := analysis.NewService(analysis.ServiceConfig{
		Source:   src,
		Rules:    analysis.NewRuleCategorizer(nil, nil),
		Sink:     sink,
		Timezone: "UTC",
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func dayEntries() []toggl.TimeEntry {
	return []toggl.TimeEntry{
		{ID: 1, Description: "Team meeting", Start: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), Duration: 7200},
		{ID: 2, Description: "Gym session", Start: time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC), Duration: 3600},
	}
}

func TestGetTimeEntriesToolRun(t *testing.T) {
	src := &toolStubSource{entries: dayEntries()}
	tool := &GetTimeEntriesTool{svc: newToolService(t, src, nil)}

	result, err := tool.Run(context.Background(), Context{"date": "2026-08-20"})
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-08-20"}, result["dates"])
	assert.Equal(t, 2, result["entry_count"])

	entries, ok := result["entries"].([]toggl.TimeEntry)
	require.True(t, ok)
	assert.Len(t, entries, 2)

	days, ok := result["days"].([]time.Time)
	require.True(t, ok)
	assert.Len(t, days, 1)
}

func TestGetTimeEntriesToolBadParams(t *testing.T) {
	tool := &GetTimeEntriesTool{svc: newToolService(t, &toolStubSource{}, nil)}

	_, err := tool.Run(context.Background(), Context{})

	var verr *analysis.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateAnalysisToolRun(t *testing.T) {
	svc := newToolService(t, &toolStubSource{entries: dayEntries()}, nil)
	get := &GetTimeEntriesTool{svc: svc}
	create := &CreateAnalysisTool{svc: svc}

	execCtx := Context{"date": "2026-08-20"}
	fetched, err := get.Run(context.Background(), execCtx)
	require.NoError(t, err)
	for k, v := range fetched {
		execCtx[k] = v
	}

	result, err := create.Run(context.Background(), execCtx)
	require.NoError(t, err)

	metrics, ok := result["metrics"].([]analysis.MetricsData)
	require.True(t, ok)
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(7200), metrics[0].Totals["Work"])
	assert.Equal(t, int64(3600), metrics[0].Totals["Fitness"])

	categories, ok := result["categories"].(analysis.CategoryAssignment)
	require.True(t, ok)
	assert.Equal(t, "Work", categories[1])
}

func TestCreateAnalysisToolMissingContext(t *testing.T) {
	tool := &CreateAnalysisTool{svc: newToolService(t, &toolStubSource{}, nil)}

	_, err := tool.Run(context.Background(), Context{})

	assert.ErrorContains(t, err, "run get_time_entries first")
}

func TestEmitMetricsToolRun(t *testing.T) {
	sink := &toolStubSink{}
	tool := &EmitMetricsTool{svc: newToolService(t, &toolStubSource{}, sink)}

	metrics := []analysis.MetricsData{{Date: "2026-08-20", Totals: map[string]int64{"Work": 3600}}}
	result, err := tool.Run(context.Background(), Context{"metrics": metrics})
	require.NoError(t, err)

	assert.Equal(t, 1, result["emitted"])
	require.Len(t, sink.emitted, 1)
	assert.Equal(t, "2026-08-20", sink.emitted[0].Date)
}

func TestEmitMetricsToolMissingContext(t *testing.T) {
	tool := &EmitMetricsTool{svc: newToolService(t, &toolStubSource{}, &toolStubSink{})}

	_, err := tool.Run(context.Background(), Context{})

	assert.ErrorContains(t, err, "run create_analysis first")
}

func TestBuiltinTools(t *testing.T) {
	tools := BuiltinTools(newToolService(t, &toolStubSource{}, nil))

	require.Len(t, tools, 3)
	names := []string{tools[0].Name(), tools[1].Name(), tools[2].Name()}
	assert.Equal(t, []string{ToolGetTimeEntries, ToolCreateAnalysis, ToolEmitMetrics}, names)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description())
	}
}

func TestExecutorRunsDefaultWorkflow(t *testing.T) {
	src := &toolStubSource{entries: dayEntries()}
	sink := &toolStubSink{}
	svc := newToolService(t, src, sink)
	e := NewExecutor(testLogger(), BuiltinTools(svc)...)

	execCtx, err := e.Run(context.Background(), DefaultWorkflow(), map[string]any{"date": "2026-08-20"})
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 2, execCtx["entry_count"])
	assert.Equal(t, 1, execCtx["emitted"])

	metrics, ok := execCtx["metrics"].([]analysis.MetricsData)
	require.True(t, ok)
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(10800), metrics[0].TotalSeconds)

	require.Len(t, sink.emitted, 1)
	assert.Equal(t, "2026-08-20", sink.emitted[0].Date)
}

func TestExecutorRunsDefaultWorkflowSinkFailure(t *testing.T) {
	sink := &toolStubSink{err: errors.New("disk full")}
	svc := newToolService(t, &toolStubSource{entries: dayEntries()}, sink)
	e := NewExecutor(testLogger(), BuiltinTools(svc)...)

	_, err := e.Run(context.Background(), DefaultWorkflow(), map[string]any{"date": "2026-08-20"})

	var wfErr *WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "emit", wfErr.Step)
	assert.ErrorContains(t, err, "disk full")
}
