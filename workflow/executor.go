package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// maxSteps bounds a walk independently of cycle detection.
const maxSteps = 32

// Context carries request parameters and accumulated step results
// through one run. Tools hand data to later steps through well-known
// keys; each step's full result is also kept under the step name.
type Context map[string]any

// Tool executes one workflow step against the execution context.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, execCtx Context) (map[string]any, error)
}

// Executor walks workflows, resolving each step's tool from its
// registry.
type Executor struct {
	tools  map[string]Tool
	logger *slog.Logger
}

// NewExecutor creates an executor over the given tools.
func NewExecutor(logger *slog.Logger, tools ...Tool) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		tools:  make(map[string]Tool, len(tools)),
		logger: logger,
	}
	for _, tool := range tools {
		e.Register(tool)
	}
	return e
}

// Register adds a tool, replacing any tool of the same name.
func (e *Executor) Register(tool Tool) {
	e.tools[tool.Name()] = tool
}

// Has reports whether a tool is registered.
func (e *Executor) Has(name string) bool {
	_, ok := e.tools[name]
	return ok
}

// Catalog returns the registered tools sorted by name.
func (e *Executor) Catalog() []Tool {
	catalog := make([]Tool, 0, len(e.tools))
	for _, tool := range e.tools {
		catalog = append(catalog, tool)
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name() < catalog[j].Name() })
	return catalog
}

// Run validates the workflow, then walks it from Start: resolve the
// step's tool, invoke it with the execution context, merge its result,
// and advance to Next. A revisited step, an unknown tool, an exhausted
// step budget, or a tool failure aborts the run.
func (e *Executor) Run(ctx context.Context, wf *Workflow, params map[string]any) (Context, error) {
	if err := wf.Validate(); err != nil {
		return nil, &WorkflowError{Err: err}
	}

	execCtx := Context{}
	for k, v := range params {
		execCtx[k] = v
	}

	visited := make(map[string]bool)
	name := wf.Start
	for steps := 0; name != ""; steps++ {
		if steps >= maxSteps {
			return nil, &WorkflowError{Step: name, Err: fmt.Errorf("step budget of %d exhausted", maxSteps)}
		}
		if visited[name] {
			return nil, &WorkflowError{Step: name, Err: fmt.Errorf("step visited twice")}
		}
		visited[name] = true

		step, ok := wf.Find(name)
		if !ok {
			return nil, &WorkflowError{Step: name, Err: fmt.Errorf("unknown step")}
		}
		tool, ok := e.tools[step.Tool]
		if !ok {
			return nil, &WorkflowError{Step: name, Err: fmt.Errorf("unknown tool %q", step.Tool)}
		}

		e.logger.Debug("executing workflow step", "step", name, "tool", step.Tool)

		result, err := tool.Run(ctx, execCtx)
		if err != nil {
			return nil, &WorkflowError{Step: name, Err: err}
		}
		for k, v := range result {
			execCtx[k] = v
		}
		execCtx[name] = result

		name = step.Next
	}

	return execCtx, nil
}
