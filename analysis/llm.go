package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sl5234/daylytics/llm"
	"github.com/sl5234/daylytics/model"
	"github.com/sl5234/daylytics/toggl"
)

// maxFormatAttempts bounds the malformed-reply correction loop. Counts
// total attempts, not retries after the first.
const maxFormatAttempts = 5

// Completer is the slice of the LLM client the analysis layer needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMCategorizer asks an LLM to categorize entries. Entries the model
// leaves out are filled from the rule categorizer; when the model call
// itself fails, the whole batch falls back to rules unless fallback is
// disabled.
type LLMCategorizer struct {
	client   Completer
	rules    *RuleCategorizer
	fallback bool
	logger   *slog.Logger
}

// NewLLMCategorizer creates an LLM-backed categorizer with the given
// rule categorizer as its safety net.
func NewLLMCategorizer(client Completer, rules *RuleCategorizer, fallback bool, logger *slog.Logger) *LLMCategorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMCategorizer{
		client:   client,
		rules:    rules,
		fallback: fallback,
		logger:   logger,
	}
}

// Categorize assigns a category to every entry. The result covers each
// input ID exactly once; IDs the model invents are dropped.
func (c *LLMCategorizer) Categorize(ctx context.Context, entries []toggl.TimeEntry) (CategoryAssignment, error) {
	if len(entries) == 0 {
		return CategoryAssignment{}, nil
	}

	assignment, err := c.complete(ctx, entries)
	if err != nil {
		if !c.fallback {
			return nil, &CategorizationError{Reason: "llm categorization failed", Err: err}
		}
		c.logger.Warn("llm categorization failed, falling back to rules", "error", err)
		return c.rules.Categorize(ctx, entries)
	}

	known := make(map[int64]bool, len(entries))
	for _, e := range entries {
		known[e.ID] = true
	}
	for id := range assignment {
		if !known[id] {
			c.logger.Debug("dropping assignment for unknown entry id", "id", id)
			delete(assignment, id)
		}
	}

	// Entries the model skipped fall back to rules individually.
	ruleAssignment, _ := c.rules.Categorize(ctx, entries)
	for _, e := range entries {
		if _, ok := assignment[e.ID]; !ok {
			assignment[e.ID] = ruleAssignment[e.ID]
		}
	}

	return assignment, nil
}

// complete runs the categorize prompt, feeding parse errors back to the
// model as correction prompts until it produces valid JSON or the
// attempt budget runs out.
func (c *LLMCategorizer) complete(ctx context.Context, entries []toggl.TimeEntry) (CategoryAssignment, error) {
	messages := []llm.Message{
		{Role: "system", Content: categorizeSystemPrompt},
		{Role: "user", Content: buildCategorizePrompt(c.rules.Rules(), entries)},
	}

	var lastErr error
	for attempt := 1; attempt <= maxFormatAttempts; attempt++ {
		resp, err := c.client.Complete(ctx, llm.Request{
			Capability: string(model.CapabilityCategorize),
			Messages:   messages,
		})
		if err != nil {
			// Transport failure: the client already retried transient
			// errors, correction prompts will not help.
			return nil, err
		}

		assignment, err := parseAssignments(resp.Content)
		if err == nil {
			return assignment, nil
		}
		lastErr = err

		c.logger.Debug("malformed categorization reply",
			"attempt", attempt,
			"error", err)

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: fmt.Sprintf(categorizeCorrectionPrompt, err)},
		)
	}

	return nil, fmt.Errorf("no valid assignment after %d attempts: %w", maxFormatAttempts, lastErr)
}

// assignmentPayload is the JSON contract the model must follow.
type assignmentPayload struct {
	Assignments []struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
	} `json:"assignments"`
}

// parseAssignments extracts the assignment object from a model reply.
func parseAssignments(content string) (CategoryAssignment, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	var payload assignmentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid assignment JSON: %w", err)
	}
	if len(payload.Assignments) == 0 {
		return nil, fmt.Errorf("reply contains no assignments")
	}

	assignment := make(CategoryAssignment, len(payload.Assignments))
	for _, a := range payload.Assignments {
		if a.Category == "" {
			return nil, fmt.Errorf("assignment for entry %d has an empty category", a.ID)
		}
		assignment[a.ID] = a.Category
	}
	return assignment, nil
}
