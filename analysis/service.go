package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sl5234/daylytics/toggl"
)

const dateLayout = "2006-01-02"

// maxRangeDays caps how far apart start and end may be. Every extra day
// is another categorization pass and another upstream fetch window.
const maxRangeDays = 20

// Request is one analysis run over a single date or a date range.
// Date and StartDate/EndDate are mutually exclusive.
type Request struct {
	Date         string `json:"date,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	ResponseMode string `json:"response_mode,omitempty"`
	UseLLM       bool   `json:"use_llm,omitempty"`
}

// Result carries everything a run produced. Metrics always holds the
// structured per-day data; Text and Table are filled for their response
// modes; Output repeats whichever view the request asked for.
type Result struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	Dates      []string           `json:"dates"`
	Metrics    []MetricsData      `json:"metrics"`
	Categories CategoryAssignment `json:"categories,omitempty"`
	Text       string             `json:"text,omitempty"`
	Table      []DayTable         `json:"table,omitempty"`
	Output     any                `json:"output,omitempty"`
}

// ServiceConfig wires the analysis pipeline's collaborators. Source and
// Rules are required; LLM and Sink are optional.
type ServiceConfig struct {
	Source   EntrySource
	Rules    *RuleCategorizer
	LLM      Categorizer
	Sink     MetricsSink
	Timezone string
	Logger   *slog.Logger
}

// Service runs the retrieve, categorize, aggregate, emit pipeline.
type Service struct {
	source   EntrySource
	rules    *RuleCategorizer
	llm      Categorizer
	sink     MetricsSink
	location *time.Location
	logger   *slog.Logger
}

// NewService creates the analysis service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("analysis: entry source is required")
	}
	if cfg.Rules == nil {
		return nil, fmt.Errorf("analysis: rule categorizer is required")
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "America/Los_Angeles"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("analysis: load timezone %q: %w", tz, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		source:   cfg.Source,
		rules:    cfg.Rules,
		llm:      cfg.LLM,
		sink:     cfg.Sink,
		location: loc,
		logger:   logger,
	}, nil
}

// Run executes one analysis request: validate the window, fetch entries
// once for the whole range, then categorize, aggregate, and emit per
// day. A sink failure aborts the run; the computed metrics are not
// returned alongside a failed emission.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	days, err := s.ResolveDays(req)
	if err != nil {
		return nil, err
	}

	mode, err := ParseResponseMode(req.ResponseMode)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	if _, err := s.categorizerFor(req.UseLLM); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := s.logger.With("run_id", runID)

	entries, err := s.Retrieve(ctx, days)
	if err != nil {
		return nil, err
	}

	metrics, categories, err := s.Analyze(ctx, days, entries, req.UseLLM)
	if err != nil {
		return nil, err
	}

	if err := s.EmitAll(ctx, metrics); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      runID,
		Status:     "completed",
		Metrics:    metrics,
		Categories: categories,
	}
	for _, day := range days {
		result.Dates = append(result.Dates, day.Format(dateLayout))
	}

	switch mode {
	case ModeText:
		texts := make([]string, 0, len(result.Metrics))
		for _, m := range result.Metrics {
			texts = append(texts, RenderText(m))
		}
		result.Text = strings.Join(texts, "\n\n")
		result.Output = result.Text
	case ModeTable:
		for _, m := range result.Metrics {
			result.Table = append(result.Table, DayTable{Date: m.Date, Rows: RenderTable(m)})
		}
		result.Output = result.Table
	default:
		result.Output = result.Metrics
	}

	logger.Info("analysis completed",
		"dates", len(days),
		"entries", len(entries),
		"mode", string(mode))

	return result, nil
}

// Retrieve fetches entries covering the days plus a margin on each
// side: entries that run past midnight end on the first target day,
// and the last day's sleep is logged the following morning.
func (s *Service) Retrieve(ctx context.Context, days []time.Time) ([]toggl.TimeEntry, error) {
	if len(days) == 0 {
		return nil, &ValidationError{Msg: "no days to retrieve"}
	}

	fetchStart := days[0].AddDate(0, 0, -1)
	fetchEnd := days[len(days)-1].AddDate(0, 0, 2)

	entries, err := s.source.GetTimeEntries(ctx, fetchStart, fetchEnd)
	if err != nil {
		return nil, fmt.Errorf("retrieve time entries: %w", err)
	}
	s.logger.Debug("retrieved time entries",
		"count", len(entries),
		"from", fetchStart.Format(dateLayout),
		"to", fetchEnd.Format(dateLayout))
	return entries, nil
}

// Analyze buckets entries onto their local days, categorizes each day's
// batch, and aggregates per-category metrics. The returned slices are
// ordered like days.
func (s *Service) Analyze(ctx context.Context, days []time.Time, entries []toggl.TimeEntry, useLLM bool) ([]MetricsData, CategoryAssignment, error) {
	categorizer, err := s.categorizerFor(useLLM)
	if err != nil {
		return nil, nil, err
	}

	byDay := make(map[string][]toggl.TimeEntry)
	for _, e := range entries {
		day := s.attributeDay(e)
		byDay[day] = append(byDay[day], e)
	}

	metrics := make([]MetricsData, 0, len(days))
	categories := CategoryAssignment{}
	for _, day := range days {
		date := day.Format(dateLayout)
		dayEntries := byDay[date]

		assignment, err := categorizer.Categorize(ctx, dayEntries)
		if err != nil {
			return nil, nil, fmt.Errorf("categorize %s: %w", date, err)
		}
		for id, category := range assignment {
			categories[id] = category
		}

		metrics = append(metrics, Aggregate(date, dayEntries, assignment))
	}
	return metrics, categories, nil
}

// EmitAll sends each day's metrics to the sink in order. Without a
// configured sink it is a no-op; the first failure aborts.
func (s *Service) EmitAll(ctx context.Context, metrics []MetricsData) error {
	if s.sink == nil {
		return nil
	}
	for _, data := range metrics {
		if err := s.sink.Emit(ctx, data); err != nil {
			return fmt.Errorf("emit metrics for %s: %w", data.Date, err)
		}
	}
	return nil
}

func (s *Service) categorizerFor(useLLM bool) (Categorizer, error) {
	if useLLM {
		if s.llm == nil {
			return nil, &ValidationError{Msg: "llm categorization is not configured"}
		}
		return s.llm, nil
	}
	return s.rules, nil
}

// ResolveDays expands the request into the ordered target days.
func (s *Service) ResolveDays(req Request) ([]time.Time, error) {
	switch {
	case req.Date != "":
		if req.StartDate != "" || req.EndDate != "" {
			return nil, &ValidationError{Msg: "date and start_date/end_date are mutually exclusive"}
		}
		day, err := time.ParseInLocation(dateLayout, req.Date, s.location)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", req.Date)}
		}
		return []time.Time{day}, nil

	case req.StartDate != "" && req.EndDate != "":
		start, err := time.ParseInLocation(dateLayout, req.StartDate, s.location)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("invalid start_date %q: expected YYYY-MM-DD", req.StartDate)}
		}
		end, err := time.ParseInLocation(dateLayout, req.EndDate, s.location)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("invalid end_date %q: expected YYYY-MM-DD", req.EndDate)}
		}
		if end.Before(start) {
			return nil, &ValidationError{Msg: "end_date is before start_date"}
		}
		if diff := int(end.Sub(start).Hours() / 24); diff > maxRangeDays {
			return nil, &ValidationError{Msg: fmt.Sprintf("date range exceeds maximum of %d days, got %d days", maxRangeDays, diff)}
		}

		var days []time.Time
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
		return days, nil

	default:
		return nil, &ValidationError{Msg: "date or start_date and end_date are required"}
	}
}

// sleepTags mark entries that describe the previous night when they
// start before noon.
var sleepTags = map[string]bool{
	"sleep":    true,
	"bed_time": true,
}

func isSleepEntry(e toggl.TimeEntry) bool {
	for _, t := range e.Tags {
		if sleepTags[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// attributeDay returns the local-calendar day an entry counts toward.
// Sleep-tagged entries started before noon belong to the previous day
// (the night they ended). Other entries that run past midnight count
// toward the day they ended. Everything else counts toward the day it
// started. Each entry lands on exactly one day.
func (s *Service) attributeDay(e toggl.TimeEntry) string {
	start := e.Start.In(s.location)

	if isSleepEntry(e) {
		if start.Hour() < 12 {
			return start.AddDate(0, 0, -1).Format(dateLayout)
		}
		return start.Format(dateLayout)
	}

	if e.Stop != nil {
		stop := e.Stop.In(s.location)
		if stop.Format(dateLayout) != start.Format(dateLayout) {
			return stop.Format(dateLayout)
		}
	}

	return start.Format(dateLayout)
}
