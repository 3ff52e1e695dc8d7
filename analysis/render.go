package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ResponseMode selects how analysis results are rendered.
type ResponseMode string

const (
	ModeText   ResponseMode = "TEXT"
	ModeTable  ResponseMode = "TABLE"
	ModeMetric ResponseMode = "METRIC"
)

// ParseResponseMode normalizes a mode string. Empty input means METRIC.
func ParseResponseMode(s string) (ResponseMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ModeMetric, nil
	case string(ModeText):
		return ModeText, nil
	case string(ModeTable):
		return ModeTable, nil
	case string(ModeMetric):
		return ModeMetric, nil
	default:
		return "", fmt.Errorf("unknown response mode %q", s)
	}
}

// TableRow is one category line in TABLE mode.
type TableRow struct {
	Category string  `json:"category"`
	Seconds  int64   `json:"seconds"`
	Hours    float64 `json:"hours"`
	Share    float64 `json:"share"`
}

// DayTable is one day's rendered table.
type DayTable struct {
	Date string     `json:"date"`
	Rows []TableRow `json:"rows"`
}

// RenderTable converts metrics into per-category rows ordered by time
// spent (descending), ties broken by category name.
func RenderTable(data MetricsData) []TableRow {
	rows := make([]TableRow, 0, len(data.Totals))
	for category, seconds := range data.Totals {
		rows = append(rows, TableRow{
			Category: category,
			Seconds:  seconds,
			Hours:    math.Round(float64(seconds)/3600*100) / 100,
			Share:    data.Distribution[category],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seconds != rows[j].Seconds {
			return rows[i].Seconds > rows[j].Seconds
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// RenderText produces a human-readable one-day summary.
func RenderText(data MetricsData) string {
	if data.TotalSeconds == 0 {
		return fmt.Sprintf("%s: no completed time entries", data.Date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s tracked across %d categories\n",
		data.Date, formatSeconds(data.TotalSeconds), len(data.Totals))
	for _, row := range RenderTable(data) {
		fmt.Fprintf(&b, "  %-20s %10s  %5.1f%%\n",
			row.Category, formatSeconds(row.Seconds), row.Share*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSeconds(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
