package scenarios

import (
	"context"
	"fmt"

	"github.com/sl5234/daylytics/server"
	"github.com/sl5234/daylytics/test/e2e/config"
	"github.com/sl5234/daylytics/workflow"
)

// ConversationFlowScenario drives POST /conversation: the prompt is
// planned into the retrieve, analyze, emit chain and executed in one
// request, so the response carries per-step results and the sink file
// is written as a side effect.
type ConversationFlowScenario struct {
	name        string
	description string
	config      *config.Config
	harness     *serverHarness
}

// NewConversationFlowScenario creates the conversation scenario.
func NewConversationFlowScenario(cfg *config.Config) *ConversationFlowScenario {
	return &ConversationFlowScenario{
		name:        "conversation-flow",
		description: "Plans and executes a full retrieve/analyze/emit workflow from a prompt in one request",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *ConversationFlowScenario) Name() string { return s.name }

// Description returns the scenario description.
func (s *ConversationFlowScenario) Description() string { return s.description }

// Setup starts an in-process server over the export fixture.
func (s *ConversationFlowScenario) Setup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.SetupTimeout)
	defer cancel()

	h, err := newServerHarness()
	if err != nil {
		return err
	}
	s.harness = h
	return h.start(ctx, workflow.StaticPlanner{})
}

// Execute runs the scenario stages.
func (s *ConversationFlowScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	runStages(ctx, result, s.config.StageTimeout, []stage{
		{"converse", s.stageConverse},
		{"verify-sink", s.stageVerifySink},
	})
	return result, nil
}

// Teardown stops the server and removes the fixtures.
func (s *ConversationFlowScenario) Teardown(_ context.Context) error {
	if s.harness == nil {
		return nil
	}
	return s.harness.stop()
}

// stageConverse posts the conversation and checks the workflow and the
// per-step results.
func (s *ConversationFlowScenario) stageConverse(ctx context.Context, result *Result) error {
	resp, err := s.harness.api.Converse(ctx, server.ConversationRequest{
		Prompt: "how did I spend my day",
		Date:   exportDate,
	})
	if err != nil {
		return fmt.Errorf("converse: %w", err)
	}

	if resp.RunID == "" {
		return fmt.Errorf("missing run_id")
	}
	result.SetDetail("run_id", resp.RunID)

	if resp.Status != "completed" {
		return fmt.Errorf("status = %q, want completed", resp.Status)
	}
	if resp.Workflow == nil {
		return fmt.Errorf("missing workflow")
	}
	if resp.Workflow.Start != "retrieve" {
		return fmt.Errorf("workflow start = %q, want retrieve", resp.Workflow.Start)
	}
	if len(resp.Workflow.Steps) != 3 {
		return fmt.Errorf("got %d workflow steps, want 3", len(resp.Workflow.Steps))
	}

	for _, step := range []string{"retrieve", "analyze", "emit"} {
		if _, ok := resp.Results[step]; !ok {
			return fmt.Errorf("missing result for step %q", step)
		}
	}

	// Step results come back as generic JSON, so numbers are float64.
	retrieve, ok := resp.Results["retrieve"].(map[string]any)
	if !ok {
		return fmt.Errorf("retrieve result is %T, want object", resp.Results["retrieve"])
	}
	if count, _ := retrieve["entry_count"].(float64); count != 4 {
		return fmt.Errorf("entry_count = %v, want 4", retrieve["entry_count"])
	}

	emit, ok := resp.Results["emit"].(map[string]any)
	if !ok {
		return fmt.Errorf("emit result is %T, want object", resp.Results["emit"])
	}
	if emitted, _ := emit["emitted"].(float64); emitted != 1 {
		return fmt.Errorf("emitted = %v, want 1", emit["emitted"])
	}

	result.SetDetail("steps_completed", len(resp.Results))
	return nil
}

// stageVerifySink checks that the emit step wrote the sink file.
func (s *ConversationFlowScenario) stageVerifySink(_ context.Context, result *Result) error {
	totals, err := s.harness.sinkTotals()
	if err != nil {
		return err
	}

	result.SetDetail("sink_categories", len(totals))
	if len(totals) != 4 {
		return fmt.Errorf("sink has %d categories, want 4: %v", len(totals), totals)
	}
	if totals["Fitness"] != 3600 {
		return fmt.Errorf("sink Fitness = %d seconds, want 3600", totals["Fitness"])
	}

	return nil
}
