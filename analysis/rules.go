package analysis

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a keyword to a category. Rules are evaluated in declaration
// order and the first match wins, so more specific keywords belong
// earlier in the file.
type Rule struct {
	Keyword  string `yaml:"keyword" json:"keyword"`
	Category string `yaml:"category" json:"category"`
}

// RuleSet is an ordered rule list plus the category assigned to entries
// nothing matches.
type RuleSet struct {
	Rules           []Rule `yaml:"rules" json:"rules"`
	DefaultCategory string `yaml:"default_category" json:"default_category"`
}

// DefaultRuleSet returns the built-in rules used when no rules file is
// configured.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Rules: []Rule{
			{Keyword: "sleep", Category: "Sleep"},
			{Keyword: "nap", Category: "Sleep"},
			{Keyword: "gym", Category: "Fitness"},
			{Keyword: "workout", Category: "Fitness"},
			{Keyword: "run", Category: "Fitness"},
			{Keyword: "meeting", Category: "Work"},
			{Keyword: "work", Category: "Work"},
			{Keyword: "research", Category: "Work"},
			{Keyword: "read", Category: "Learning"},
			{Keyword: "language", Category: "Learning"},
			{Keyword: "family", Category: "Family"},
			{Keyword: "call", Category: "Family"},
		},
		DefaultCategory: "Other",
	}
}

// ParseRuleSet decodes a YAML rule set. A missing default category
// falls back to "Other".
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if rs.DefaultCategory == "" {
		rs.DefaultCategory = "Other"
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRuleSet reads and parses a YAML rules file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(data)
}

// SaveToFile writes the rule set as YAML.
func (rs *RuleSet) SaveToFile(path string) error {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}

// Validate checks that every rule carries a keyword and a category.
func (rs *RuleSet) Validate() error {
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return fmt.Errorf("rule %d: keyword is empty", i)
		}
		if strings.TrimSpace(r.Category) == "" {
			return fmt.Errorf("rule %d (%q): category is empty", i, r.Keyword)
		}
	}
	if strings.TrimSpace(rs.DefaultCategory) == "" {
		return fmt.Errorf("default category is empty")
	}
	return nil
}

// Match returns the category for a description: case-insensitive
// substring match, first matching rule wins, default category when
// nothing matches.
func (rs *RuleSet) Match(description string) string {
	desc := strings.ToLower(description)
	for _, r := range rs.Rules {
		if strings.Contains(desc, strings.ToLower(r.Keyword)) {
			return r.Category
		}
	}
	return rs.DefaultCategory
}

// Categories returns the distinct category names in rule order, with
// the default category last.
func (rs *RuleSet) Categories() []string {
	seen := make(map[string]bool, len(rs.Rules)+1)
	out := make([]string, 0, len(rs.Rules)+1)
	for _, r := range rs.Rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if rs.DefaultCategory != "" && !seen[rs.DefaultCategory] {
		out = append(out, rs.DefaultCategory)
	}
	return out
}
