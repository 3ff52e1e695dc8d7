package metrics

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sl5234/daylytics/analysis"
)

// CSVSink appends one row per category to a local file. The file is
// opened per emission so external rotation keeps working; the mutex
// keeps concurrent requests from interleaving rows.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewCSVSink creates a sink writing to path.
func NewCSVSink(path string, logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSink{path: path, logger: logger}
}

func (s *CSVSink) Name() string { return "csv" }

// Emit appends timestamp,date,category,seconds rows in category order,
// writing the header when it creates the file.
func (s *CSVSink) Emit(_ context.Context, data analysis.MetricsData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &EmissionError{Backend: "csv", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"timestamp", "date", "category", "seconds"}); err != nil {
			return &EmissionError{Backend: "csv", Err: err}
		}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	categories := make([]string, 0, len(data.Totals))
	for category := range data.Totals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		row := []string{timestamp, data.Date, category, strconv.FormatInt(data.Totals[category], 10)}
		if err := w.Write(row); err != nil {
			return &EmissionError{Backend: "csv", Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return &EmissionError{Backend: "csv", Err: err}
	}

	s.logger.Debug("metrics appended",
		"path", s.path,
		"date", data.Date,
		"rows", len(categories))
	return nil
}
