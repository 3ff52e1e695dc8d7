// Package analysis turns raw time entries into per-category metrics.
// Entries are categorized (ordered keyword rules or an LLM), durations
// aggregated per category, and the result rendered as structured
// metrics, a table, or text.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sl5234/daylytics/toggl"
)

// EntrySource supplies time entries for a window. Satisfied by
// toggl.Client and toggl.FileSource.
type EntrySource interface {
	GetTimeEntries(ctx context.Context, start, end time.Time) ([]toggl.TimeEntry, error)
}

// Categorizer assigns a category to every entry it is given.
type Categorizer interface {
	Categorize(ctx context.Context, entries []toggl.TimeEntry) (CategoryAssignment, error)
}

// MetricsSink receives aggregated metrics. Satisfied by the sinks in
// the metrics package.
type MetricsSink interface {
	Name() string
	Emit(ctx context.Context, data MetricsData) error
}

// CategoryAssignment maps entry ID to category name. A complete
// assignment covers every supplied entry ID exactly once.
type CategoryAssignment map[int64]string

// MetricsData is one day's aggregated result. Totals are seconds per
// category; Distribution is each category's share of TotalSeconds,
// rounded to four decimal places. Zero analyzed entries yield empty
// (non-nil) maps.
type MetricsData struct {
	Date         string             `json:"date"`
	Totals       map[string]int64   `json:"totals"`
	Distribution map[string]float64 `json:"distribution"`
	TotalSeconds int64              `json:"total_seconds"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// ValidationError reports a bad request, detected before any upstream
// call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// CategorizationError reports a failure assigning categories.
type CategorizationError struct {
	Reason string
	Err    error
}

func (e *CategorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("categorization failed: %s: %v", e.Reason, e.Err)
	}
	return "categorization failed: " + e.Reason
}

func (e *CategorizationError) Unwrap() error {
	return e.Err
}
