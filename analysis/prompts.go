package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/sl5234/daylytics/toggl"
)

// categorizeSystemPrompt frames the model as a strict JSON producer.
const categorizeSystemPrompt = `You are a time-tracking assistant. You assign each time entry to exactly one category.

Respond with ONLY a JSON object of this exact form:
{"assignments": [{"id": <entry id>, "category": "<category name>"}]}

Rules:
- Every entry must appear exactly once.
- Never invent entry IDs.
- Prefer the known categories; create a new short name only when nothing fits.
- No prose, no markdown fences, no comments.`

// categorizeCorrectionPrompt is sent back when a reply fails to parse.
const categorizeCorrectionPrompt = `Your previous reply could not be parsed: %v

Reply again with ONLY the JSON object {"assignments": [{"id": ..., "category": "..."}]} covering every entry exactly once.`

// buildCategorizePrompt lists the known categories and the entries to
// assign.
func buildCategorizePrompt(rules *RuleSet, entries []toggl.TimeEntry) string {
	var b strings.Builder

	b.WriteString("Known categories: ")
	b.WriteString(strings.Join(rules.Categories(), ", "))
	b.WriteString("\n\nTime entries:\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "- id=%d description=%q", e.ID, e.Description)
		if e.Project != "" {
			fmt.Fprintf(&b, " project=%q", e.Project)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, " tags=%s", strings.Join(e.Tags, ","))
		}
		fmt.Fprintf(&b, " duration=%s\n", time.Duration(e.Duration)*time.Second)
	}

	return b.String()
}
