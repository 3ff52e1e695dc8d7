// Package scenarios defines the e2e scenario contract and the shared
// result type. Each scenario drives a running daylytics server over
// HTTP and reports per-stage outcomes.
package scenarios

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Scenario is one end-to-end flow: set up fixtures and a server, drive
// the API, verify, clean up.
type Scenario interface {
	// Name returns the scenario name used for selection and reporting.
	Name() string

	// Description says what the scenario verifies.
	Description() string

	// Setup prepares fixtures and starts whatever the scenario needs.
	Setup(ctx context.Context) error

	// Execute runs the scenario. A failed verification is reported in
	// the Result, not as an error; errors are reserved for the harness
	// itself breaking.
	Execute(ctx context.Context) (*Result, error)

	// Teardown releases everything Setup created.
	Teardown(ctx context.Context) error
}

// stage is one named step of a scenario.
type stage struct {
	name string
	fn   func(context.Context, *Result) error
}

// runStages executes stages in order under a per-stage timeout,
// recording timing for each and stopping at the first failure. The
// result is marked successful only when every stage passes.
func runStages(ctx context.Context, result *Result, timeout time.Duration, stages []stage) {
	for _, st := range stages {
		start := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		err := st.fn(stageCtx, result)
		cancel()

		elapsed := time.Since(start)
		result.SetMetric(st.name+"_duration_us", elapsed.Microseconds())

		if err != nil {
			result.AddStage(st.name, false, elapsed, err.Error())
			result.AddError(fmt.Sprintf("%s: %v", st.name, err))
			result.Error = fmt.Sprintf("%s failed: %v", st.name, err)
			return
		}
		result.AddStage(st.name, true, elapsed, "")
	}
	result.Success = true
}

// Result is the outcome of one scenario run. Methods are safe for
// concurrent use.
type Result struct {
	mu sync.Mutex

	Name      string        `json:"name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Stages   []StageResult  `json:"stages,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// StageResult is the outcome of a single stage.
type StageResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewResult creates a Result for the named scenario with the start
// time stamped.
func NewResult(name string) *Result {
	return &Result{
		Name:      name,
		StartTime: time.Now(),
		Metrics:   make(map[string]any),
		Details:   make(map[string]any),
	}
}

// Complete stamps the end time and duration.
func (r *Result) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// AddStage appends a stage outcome.
func (r *Result) AddStage(name string, ok bool, d time.Duration, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, StageResult{Name: name, Success: ok, Duration: d, Error: errMsg})
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
}

// AddWarning records a non-fatal issue.
func (r *Result) AddWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

// SetMetric stores a timing or count collected along the way.
func (r *Result) SetMetric(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metrics[key] = v
}

// SetDetail stores scenario-specific output for the report.
func (r *Result) SetDetail(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Details[key] = v
}

// GetDetail reads a detail value.
func (r *Result) GetDetail(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Details[key]
	return v, ok
}
