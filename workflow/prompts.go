package workflow

import (
	"fmt"
	"strings"
)

// planSystemPrompt frames the model as a strict JSON producer.
const planSystemPrompt = `You are a workflow planner for a time-tracking analytics service. You turn a request into an ordered chain of tool invocations.

Respond with ONLY a JSON object of this exact form:
{"start": "<first step name>", "steps": [{"name": "<step name>", "description": "<what the step does>", "tool": "<tool name>", "next": "<next step name>"}]}

Rules:
- Use only the listed tools.
- Step names must be unique; the last step omits "next" or sets it to "".
- Retrieval must come before analysis, analysis before emission.
- No prose, no markdown fences, no comments.`

// planCorrectionPrompt is sent back when a reply fails to parse or
// validate.
const planCorrectionPrompt = `Your previous reply could not be used: %v

Reply again with ONLY the JSON object {"start": ..., "steps": [...]} using only the listed tools.`

// buildPlanPrompt lists the tool catalog and the request to plan for.
func buildPlanPrompt(catalog []Tool, prompt string) string {
	var b strings.Builder

	b.WriteString("Available tools:\n")
	for _, tool := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}
	b.WriteString("\nRequest: ")
	b.WriteString(prompt)

	return b.String()
}
