package analysis

import (
	"math"
	"time"

	"github.com/sl5234/daylytics/toggl"
)

// Aggregate sums entry durations per assigned category and computes
// each category's share of the day's total. It is a pure function over
// its inputs apart from the GeneratedAt timestamp.
//
// Running entries (negative duration) are skipped. Entries missing from
// the assignment land in "Uncategorized" rather than being dropped, so
// the totals always sum to the analyzed entries' durations. Shares are
// rounded to four decimal places. Empty input yields empty maps and a
// zero total, never a division error.
func Aggregate(date string, entries []toggl.TimeEntry, assignment CategoryAssignment) MetricsData {
	data := MetricsData{
		Date:         date,
		Totals:       make(map[string]int64),
		Distribution: make(map[string]float64),
		GeneratedAt:  time.Now().UTC(),
	}

	for _, e := range entries {
		if e.Running() {
			continue
		}
		category := assignment[e.ID]
		if category == "" {
			category = "Uncategorized"
		}
		data.Totals[category] += e.Duration
		data.TotalSeconds += e.Duration
	}

	if data.TotalSeconds == 0 {
		return data
	}

	for category, seconds := range data.Totals {
		share := float64(seconds) / float64(data.TotalSeconds)
		data.Distribution[category] = math.Round(share*10000) / 10000
	}

	return data
}
