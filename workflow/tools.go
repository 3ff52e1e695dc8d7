package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sl5234/daylytics/analysis"
	"github.com/sl5234/daylytics/toggl"
)

// BuiltinTools returns the standard tool set over an analysis service.
func BuiltinTools(svc *analysis.Service) []Tool {
	return []Tool{
		&GetTimeEntriesTool{svc: svc},
		&CreateAnalysisTool{svc: svc},
		&EmitMetricsTool{svc: svc},
	}
}

// requestFromContext reads the analysis request parameters out of the
// execution context.
func requestFromContext(execCtx Context) analysis.Request {
	str := func(key string) string {
		s, _ := execCtx[key].(string)
		return s
	}
	useLLM, _ := execCtx["use_llm"].(bool)
	return analysis.Request{
		Date:      str("date"),
		StartDate: str("start_date"),
		EndDate:   str("end_date"),
		UseLLM:    useLLM,
	}
}

// GetTimeEntriesTool resolves the requested window and fetches its time
// entries.
type GetTimeEntriesTool struct {
	svc *analysis.Service
}

func (t *GetTimeEntriesTool) Name() string { return ToolGetTimeEntries }

func (t *GetTimeEntriesTool) Description() string {
	return "Fetch time entries for the requested date or date range"
}

func (t *GetTimeEntriesTool) Run(ctx context.Context, execCtx Context) (map[string]any, error) {
	days, err := t.svc.ResolveDays(requestFromContext(execCtx))
	if err != nil {
		return nil, err
	}

	entries, err := t.svc.Retrieve(ctx, days)
	if err != nil {
		return nil, err
	}

	dates := make([]string, len(days))
	for i, day := range days {
		dates[i] = day.Format("2006-01-02")
	}
	return map[string]any{
		"days":        days,
		"dates":       dates,
		"entries":     entries,
		"entry_count": len(entries),
	}, nil
}

// CreateAnalysisTool categorizes the retrieved entries and aggregates
// per-category metrics.
type CreateAnalysisTool struct {
	svc *analysis.Service
}

func (t *CreateAnalysisTool) Name() string { return ToolCreateAnalysis }

func (t *CreateAnalysisTool) Description() string {
	return "Categorize retrieved entries and aggregate per-category metrics"
}

func (t *CreateAnalysisTool) Run(ctx context.Context, execCtx Context) (map[string]any, error) {
	days, ok := execCtx["days"].([]time.Time)
	if !ok {
		return nil, fmt.Errorf("no retrieved window in context, run %s first", ToolGetTimeEntries)
	}
	entries, ok := execCtx["entries"].([]toggl.TimeEntry)
	if !ok {
		return nil, fmt.Errorf("no retrieved entries in context, run %s first", ToolGetTimeEntries)
	}
	useLLM, _ := execCtx["use_llm"].(bool)

	metrics, categories, err := t.svc.Analyze(ctx, days, entries, useLLM)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"metrics":    metrics,
		"categories": categories,
	}, nil
}

// EmitMetricsTool sends the produced metrics to the configured sink.
type EmitMetricsTool struct {
	svc *analysis.Service
}

func (t *EmitMetricsTool) Name() string { return ToolEmitMetrics }

func (t *EmitMetricsTool) Description() string {
	return "Send aggregated metrics to the configured sink"
}

func (t *EmitMetricsTool) Run(ctx context.Context, execCtx Context) (map[string]any, error) {
	metrics, ok := execCtx["metrics"].([]analysis.MetricsData)
	if !ok {
		return nil, fmt.Errorf("no metrics in context, run %s first", ToolCreateAnalysis)
	}

	if err := t.svc.EmitAll(ctx, metrics); err != nil {
		return nil, err
	}
	return map[string]any{"emitted": len(metrics)}, nil
}
