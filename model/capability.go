// Package model resolves capability names to model endpoints. Callers
// ask for "categorize" or "plan" rather than a concrete model; the
// registry maps each capability to an ordered endpoint chain and keeps
// circuit breakers over the endpoints it hands out.
package model

import "fmt"

// Capability names a kind of work a model is asked to do.
type Capability string

const (
	// CapabilityCategorize assigns time entries to categories.
	CapabilityCategorize Capability = "categorize"

	// CapabilityPlan produces workflow step chains from a prompt.
	CapabilityPlan Capability = "plan"

	// CapabilitySummarize writes narrative summaries of analysis results.
	CapabilitySummarize Capability = "summarize"
)

// IsValid reports whether c is one of the known capabilities.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityCategorize, CapabilityPlan, CapabilitySummarize:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a configuration string to a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}
