package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sl5234/daylytics/llm"
	"github.com/sl5234/daylytics/llm/testutil"
)

const validPlanJSON = `{
  "start": "fetch",
  "steps": [
    {"name": "fetch", "description": "get entries", "tool": "get_time_entries", "next": "crunch"},
    {"name": "crunch", "description": "analyze", "tool": "create_analysis", "next": "push"},
    {"name": "push", "description": "emit", "tool": "emit_metrics"}
  ]
}`

func builtinExecutor(t *testing.T) *Executor {
	t.Helper()
	svc := newToolService(t, &toolStubSource{}, nil)
	return NewExecutor(testLogger(), BuiltinTools(svc)...)
}

func TestDefaultWorkflow(t *testing.T) {
	wf := DefaultWorkflow()

	require.NoError(t, wf.Validate())
	require.Len(t, wf.Steps, 3)
	assert.Equal(t, ToolGetTimeEntries, wf.Steps[0].Tool)
	assert.Equal(t, ToolCreateAnalysis, wf.Steps[1].Tool)
	assert.Equal(t, ToolEmitMetrics, wf.Steps[2].Tool)
	assert.Empty(t, wf.Steps[2].Next)
}

func TestStaticPlanner(t *testing.T) {
	wf, err := StaticPlanner{}.Plan(context.Background(), "whatever you like")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkflow(), wf)
}

func TestLLMPlannerPlan(t *testing.T) {
	mock := &testutil.MockLLMClient{
		Responses: []*llm.Response{{Content: validPlanJSON}},
	}
	p := NewLLMPlanner(mock, builtinExecutor(t), true, testLogger())

	wf, err := p.Plan(context.Background(), "analyze yesterday and push the results")
	require.NoError(t, err)

	assert.Equal(t, "fetch", wf.Start)
	require.Len(t, wf.Steps, 3)
	assert.Equal(t, "crunch", wf.Steps[0].Next)

	reqs := mock.GetCapturedRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "plan", reqs[0].Capability)

	// The prompt carries the tool catalog and the request.
	user := reqs[0].Messages[1].Content
	assert.Contains(t, user, "get_time_entries")
	assert.Contains(t, user, "create_analysis")
	assert.Contains(t, user, "emit_metrics")
	assert.Contains(t, user, "analyze yesterday")
}

func TestLLMPlannerFormatCorrection(t *testing.T) {
	mock := &testutil.MockLLMClient{
		Responses: []*llm.Response{
			{Content: "I would fetch the entries first, then analyze them."},
			{Content: validPlanJSON},
		},
	}
	p := NewLLMPlanner(mock, builtinExecutor(t), true, testLogger())

	wf, err := p.Plan(context.Background(), "analyze yesterday")
	require.NoError(t, err)
	assert.Equal(t, "fetch", wf.Start)

	reqs := mock.GetCapturedRequests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 4)
	assert.Equal(t, "assistant", reqs[1].Messages[2].Role)
	assert.Contains(t, reqs[1].Messages[3].Content, "could not be used")
}

func TestLLMPlannerRejectsUnknownTool(t *testing.T) {
	mock := &testutil.MockLLMClient{
		Responses: []*llm.Response{
			{Content: `{"start": "a", "steps": [{"name": "a", "tool": "delete_everything"}]}`},
			{Content: validPlanJSON},
		},
	}
	p := NewLLMPlanner(mock, builtinExecutor(t), true, testLogger())

	wf, err := p.Plan(context.Background(), "analyze yesterday")
	require.NoError(t, err)
	assert.Equal(t, "fetch", wf.Start)

	reqs := mock.GetCapturedRequests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].Messages[3].Content, "delete_everything")
}

func TestLLMPlannerFallbackOnTransportError(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: assert.AnError}
	p := NewLLMPlanner(mock, builtinExecutor(t), true, testLogger())

	wf, err := p.Plan(context.Background(), "analyze yesterday")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkflow(), wf)
}

func TestLLMPlannerFallbackDisabled(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: assert.AnError}
	p := NewLLMPlanner(mock, builtinExecutor(t), false, testLogger())

	_, err := p.Plan(context.Background(), "analyze yesterday")

	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLLMPlannerFormatExhaustion(t *testing.T) {
	var responses []*llm.Response
	for i := 0; i < maxFormatAttempts; i++ {
		responses = append(responses, &llm.Response{Content: "still no JSON here"})
	}
	mock := &testutil.MockLLMClient{Responses: responses}
	p := NewLLMPlanner(mock, builtinExecutor(t), true, testLogger())

	wf, err := p.Plan(context.Background(), "analyze yesterday")
	require.NoError(t, err)

	assert.Equal(t, maxFormatAttempts, mock.GetCallCount())
	assert.Equal(t, DefaultWorkflow(), wf, "exhaustion falls back to the static plan")
}

func TestLLMPlannerExhaustionFallbackDisabled(t *testing.T) {
	var responses []*llm.Response
	for i := 0; i < maxFormatAttempts; i++ {
		responses = append(responses, &llm.Response{Content: "nope"})
	}
	mock := &testutil.MockLLMClient{Responses: responses}
	p := NewLLMPlanner(mock, builtinExecutor(t), false, testLogger())

	_, err := p.Plan(context.Background(), "analyze yesterday")

	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.ErrorContains(t, err, "after 5 attempts")
}
