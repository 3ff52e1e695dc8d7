package toggl

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sl5234/daylytics/config"
)

// FileSource reads time entries from local Toggl CSV export files
// matched by glob patterns. Export timestamps carry no zone, so rows
// are interpreted in the configured timezone.
type FileSource struct {
	globs    []string
	location *time.Location
	logger   *slog.Logger
}

// NewFileSource creates a source over the export globs in cfg. The
// logger may be nil.
func NewFileSource(cfg config.TogglConfig, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	return &FileSource{
		globs:    cfg.ExportGlobs,
		location: loc,
		logger:   logger,
	}, nil
}

// GetTimeEntries loads every matched export file and returns the
// entries whose start or stop falls within [start, end], ordered by
// start time. Export rows have no Toggl IDs, so IDs are synthesized and
// are only stable within a single call.
func (s *FileSource) GetTimeEntries(ctx context.Context, start, end time.Time) ([]TimeEntry, error) {
	var files []string
	for _, pattern := range s.globs {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, &RetrievalError{Op: "expand glob " + pattern, Err: err}
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, &RetrievalError{
			Op:  "match export files",
			Err: fmt.Errorf("no files match %v", s.globs),
		}
	}

	var entries []TimeEntry
	nextID := int64(1)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, &RetrievalError{Op: "read export files", Err: err}
		}
		parsed, err := s.parseFile(path, &nextID)
		if err != nil {
			return nil, &RetrievalError{Op: "parse " + path, Err: err}
		}
		entries = append(entries, parsed...)
	}

	filtered := entries[:0]
	for _, e := range entries {
		if !inWindow(e, start, end) {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Start.Before(filtered[j].Start)
	})

	s.logger.Debug("loaded export entries",
		"files", len(files),
		"entries", len(filtered))

	return filtered, nil
}

// parseFile reads one CSV export. Columns are located by header name so
// the extra report columns (user, billable, amounts) can come and go.
func (s *FileSource) parseFile(path string, nextID *int64) ([]TimeEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"description", "start date", "start time"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var entries []TimeEntry
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		startAt, err := time.ParseInLocation("2006-01-02 15:04:05",
			field(record, "start date")+" "+field(record, "start time"), s.location)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse start: %w", line, err)
		}

		var stop *time.Time
		if endDate, endTime := field(record, "end date"), field(record, "end time"); endDate != "" && endTime != "" {
			stopAt, err := time.ParseInLocation("2006-01-02 15:04:05", endDate+" "+endTime, s.location)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse end: %w", line, err)
			}
			// Overnight entries wrap past midnight in reports that only
			// carry an end time.
			if stopAt.Before(startAt) {
				stopAt = stopAt.AddDate(0, 0, 1)
			}
			stop = &stopAt
		}

		var duration int64
		switch {
		case field(record, "duration") != "":
			duration, err = parseClockDuration(field(record, "duration"))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		case stop != nil:
			duration = int64(stop.Sub(startAt) / time.Second)
		default:
			return nil, fmt.Errorf("line %d: no duration and no end time", line)
		}

		var tags []string
		if raw := field(record, "tags"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}

		entries = append(entries, TimeEntry{
			ID:          *nextID,
			Description: field(record, "description"),
			Project:     field(record, "project"),
			Tags:        tags,
			Start:       startAt,
			Stop:        stop,
			Duration:    duration,
		})
		*nextID++
	}

	return entries, nil
}

// inWindow reports whether the entry's start or stop falls within
// [start, end]. Checking the stop as well catches entries that ran past
// midnight into the window.
func inWindow(e TimeEntry, start, end time.Time) bool {
	if !e.Start.Before(start) && !e.Start.After(end) {
		return true
	}
	if e.Stop != nil && !e.Stop.Before(start) && !e.Stop.After(end) {
		return true
	}
	return false
}

// parseClockDuration converts the export's HH:MM:SS duration to seconds.
func parseClockDuration(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	sec, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	return h*3600 + m*60 + sec, nil
}
