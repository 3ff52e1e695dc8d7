package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sl5234/daylytics/llm"
	"github.com/sl5234/daylytics/model"
)

// maxFormatAttempts bounds the malformed-reply correction loop. Counts
// total attempts, not retries after the first.
const maxFormatAttempts = 5

// Planner produces a workflow from a natural-language prompt.
type Planner interface {
	Plan(ctx context.Context, prompt string) (*Workflow, error)
}

// PlanningError reports a failure producing a workflow.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return "planning failed: " + e.Reason
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// DefaultWorkflow is the canonical retrieve, analyze, emit chain.
func DefaultWorkflow() *Workflow {
	return &Workflow{
		Start: "retrieve",
		Steps: []Step{
			{
				Name:        "retrieve",
				Description: "Fetch time entries for the requested window",
				Tool:        ToolGetTimeEntries,
				Next:        "analyze",
			},
			{
				Name:        "analyze",
				Description: "Categorize entries and aggregate per-category metrics",
				Tool:        ToolCreateAnalysis,
				Next:        "emit",
			},
			{
				Name:        "emit",
				Description: "Send aggregated metrics to the configured sink",
				Tool:        ToolEmitMetrics,
			},
		},
	}
}

// StaticPlanner returns the canonical chain for any prompt.
type StaticPlanner struct{}

func (StaticPlanner) Plan(context.Context, string) (*Workflow, error) {
	return DefaultWorkflow(), nil
}

// Completer is the slice of the LLM client the planner needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMPlanner asks the model for a step chain built from the executor's
// tool catalog. When the model is unavailable it falls back to the
// static plan unless fallback is disabled.
type LLMPlanner struct {
	client   Completer
	executor *Executor
	fallback bool
	logger   *slog.Logger
}

// NewLLMPlanner creates an LLM-backed planner. The executor supplies
// the tool catalog and validates planned tools.
func NewLLMPlanner(client Completer, executor *Executor, fallback bool, logger *slog.Logger) *LLMPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{
		client:   client,
		executor: executor,
		fallback: fallback,
		logger:   logger,
	}
}

// Plan produces a validated workflow for the prompt.
func (p *LLMPlanner) Plan(ctx context.Context, prompt string) (*Workflow, error) {
	wf, err := p.complete(ctx, prompt)
	if err != nil {
		if !p.fallback {
			return nil, &PlanningError{Reason: "llm planning failed", Err: err}
		}
		p.logger.Warn("llm planning failed, falling back to the static plan", "error", err)
		return StaticPlanner{}.Plan(ctx, prompt)
	}
	return wf, nil
}

// complete runs the plan prompt, feeding parse and validation errors
// back to the model as correction prompts until it produces a usable
// workflow or the attempt budget runs out.
func (p *LLMPlanner) complete(ctx context.Context, prompt string) (*Workflow, error) {
	messages := []llm.Message{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: buildPlanPrompt(p.executor.Catalog(), prompt)},
	}

	var lastErr error
	for attempt := 1; attempt <= maxFormatAttempts; attempt++ {
		resp, err := p.client.Complete(ctx, llm.Request{
			Capability: string(model.CapabilityPlan),
			Messages:   messages,
		})
		if err != nil {
			// Transport failure: the client already retried transient
			// errors, correction prompts will not help.
			return nil, err
		}

		wf, err := p.parseWorkflow(resp.Content)
		if err == nil {
			return wf, nil
		}
		lastErr = err

		p.logger.Debug("malformed plan reply",
			"attempt", attempt,
			"error", err)

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: fmt.Sprintf(planCorrectionPrompt, err)},
		)
	}

	return nil, fmt.Errorf("no valid workflow after %d attempts: %w", maxFormatAttempts, lastErr)
}

// parseWorkflow extracts and validates a workflow from a model reply.
// Structure and tool names are both checked, so a syntactically valid
// plan naming unknown tools still triggers a correction.
func (p *LLMPlanner) parseWorkflow(content string) (*Workflow, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	var wf Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return nil, fmt.Errorf("invalid workflow JSON: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	for _, step := range wf.Steps {
		if !p.executor.Has(step.Tool) {
			return nil, fmt.Errorf("step %q uses unknown tool %q", step.Name, step.Tool)
		}
	}
	return &wf, nil
}
