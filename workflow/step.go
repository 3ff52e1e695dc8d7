// Package workflow plans and executes named step chains over the
// analysis tooling. A planner (static or LLM-backed) produces a
// Workflow; the Executor walks it, resolving each step's tool by name
// and threading results through a shared execution context.
package workflow

import (
	"errors"
	"fmt"
)

// Tool name constants for the built-in steps.
const (
	ToolGetTimeEntries = "get_time_entries"
	ToolCreateAnalysis = "create_analysis"
	ToolEmitMetrics    = "emit_metrics"
)

// Sentinel errors for workflow structure problems.
var (
	ErrNoSteps  = errors.New("workflow has no steps")
	ErrNoStart  = errors.New("workflow start step is not set")
	ErrNoTool   = errors.New("step has no tool")
	ErrNoName   = errors.New("step has no name")
	ErrBadStart = errors.New("start does not name a step")
	ErrBadNext  = errors.New("next does not name a step")
	ErrDupStep  = errors.New("duplicate step name")
)

// Step is one node in a workflow: a named tool invocation with an
// optional pointer to the next step. An empty Next terminates the
// chain.
type Step struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tool        string `json:"tool"`
	Next        string `json:"next,omitempty"`
}

// Workflow is a chain of uniquely named steps entered at Start.
type Workflow struct {
	Start string `json:"start"`
	Steps []Step `json:"steps"`
}

// Validate checks the structural invariants: at least one step, every
// step named and carrying a tool, names unique, and Start and every
// non-empty Next resolving to a step.
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return ErrNoSteps
	}
	if w.Start == "" {
		return ErrNoStart
	}

	names := make(map[string]bool, len(w.Steps))
	for _, step := range w.Steps {
		if step.Name == "" {
			return ErrNoName
		}
		if step.Tool == "" {
			return fmt.Errorf("%w: %s", ErrNoTool, step.Name)
		}
		if names[step.Name] {
			return fmt.Errorf("%w: %s", ErrDupStep, step.Name)
		}
		names[step.Name] = true
	}

	if !names[w.Start] {
		return fmt.Errorf("%w: %s", ErrBadStart, w.Start)
	}
	for _, step := range w.Steps {
		if step.Next != "" && !names[step.Next] {
			return fmt.Errorf("%w: %s -> %s", ErrBadNext, step.Name, step.Next)
		}
	}
	return nil
}

// Find returns the named step.
func (w *Workflow) Find(name string) (Step, bool) {
	for _, step := range w.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return Step{}, false
}

// WorkflowError reports a failed run, identifying the failing step when
// one is known.
type WorkflowError struct {
	Step string
	Err  error
}

func (e *WorkflowError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("workflow: step %q: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("workflow: %v", e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
