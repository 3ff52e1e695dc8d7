package analysis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sl5234/daylytics/toggl"
)

// RuleCategorizer assigns categories using an ordered keyword rule set.
// The rule set can be swapped at runtime (see RulesWatcher), so reads
// take the read lock.
type RuleCategorizer struct {
	mu     sync.RWMutex
	rules  *RuleSet
	logger *slog.Logger
}

// NewRuleCategorizer creates a categorizer over the given rules. A nil
// rule set uses the built-in defaults; a nil logger uses slog.Default.
func NewRuleCategorizer(rules *RuleSet, logger *slog.Logger) *RuleCategorizer {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleCategorizer{
		rules:  rules,
		logger: logger,
	}
}

// Categorize assigns every entry a category. Rule matching cannot fail:
// unmatched entries get the default category.
func (c *RuleCategorizer) Categorize(_ context.Context, entries []toggl.TimeEntry) (CategoryAssignment, error) {
	rules := c.Rules()

	assignment := make(CategoryAssignment, len(entries))
	for _, e := range entries {
		assignment[e.ID] = rules.Match(e.Description)
	}
	return assignment, nil
}

// Rules returns the current rule set.
func (c *RuleCategorizer) Rules() *RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules
}

// SetRules swaps in a new rule set. In-flight Categorize calls finish
// with the set they started with.
func (c *RuleCategorizer) SetRules(rules *RuleSet) {
	if rules == nil {
		return
	}
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()

	c.logger.Debug("rule set replaced",
		"rules", len(rules.Rules),
		"default_category", rules.DefaultCategory)
}
