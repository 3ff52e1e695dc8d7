// Package toggl retrieves time entries from the Toggl Track API or from
// local export files. Both sources return the same TimeEntry shape so
// the analysis layer does not care where entries came from.
package toggl

import (
	"fmt"
	"time"
)

// TimeEntry is a single tracked interval as reported by Toggl.
type TimeEntry struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Project     string     `json:"project,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Start       time.Time  `json:"start"`
	Stop        *time.Time `json:"stop,omitempty"`
	Duration    int64      `json:"duration"` // seconds; negative while running
}

// Running reports whether the entry is still being tracked. Running
// entries have no stop time and a negative duration.
func (e TimeEntry) Running() bool {
	return e.Duration < 0
}

// RetrievalError reports a failure fetching time entries from upstream,
// whether the Toggl API or local export files. StatusCode is zero when
// no HTTP response was received.
type RetrievalError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("toggl: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("toggl: %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
