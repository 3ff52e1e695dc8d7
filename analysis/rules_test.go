package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sl5234/daylytics/toggl"
)

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet([]byte(`
rules:
  - keyword: sleep
    category: Sleep
  - keyword: gym
    category: Fitness
default_category: Other
`))
	require.NoError(t, err)

	assert.Len(t, rs.Rules, 2)
	assert.Equal(t, "sleep", rs.Rules[0].Keyword)
	assert.Equal(t, "Fitness", rs.Rules[1].Category)
	assert.Equal(t, "Other", rs.DefaultCategory)
}

func TestParseRuleSetDefaultsCategory(t *testing.T) {
	rs, err := ParseRuleSet([]byte(`
rules:
  - keyword: work
    category: Work
`))
	require.NoError(t, err)
	assert.Equal(t, "Other", rs.DefaultCategory)
}

func TestParseRuleSetInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "empty keyword",
			yaml: "rules:\n  - keyword: \"\"\n    category: Work\n",
		},
		{
			name: "empty category",
			yaml: "rules:\n  - keyword: work\n    category: \"\"\n",
		},
		{
			name: "malformed yaml",
			yaml: "rules: [unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRuleSetMatch(t *testing.T) {
	rs := &RuleSet{
		Rules: []Rule{
			{Keyword: "deep work", Category: "Focus"},
			{Keyword: "work", Category: "Work"},
			{Keyword: "gym", Category: "Fitness"},
		},
		DefaultCategory: "Other",
	}

	tests := []struct {
		description string
		want        string
	}{
		{"Deep Work on parser", "Focus"},      // first matching rule wins
		{"work on slides", "Work"},            // later rule when earlier misses
		{"GYM session", "Fitness"},            // case-insensitive
		{"morning walk", "Other"},             // no match falls through
		{"homework review", "Work"},           // substring match, not word match
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, rs.Match(tt.description))
		})
	}
}

func TestRuleSetCategories(t *testing.T) {
	rs := &RuleSet{
		Rules: []Rule{
			{Keyword: "sleep", Category: "Sleep"},
			{Keyword: "nap", Category: "Sleep"},
			{Keyword: "gym", Category: "Fitness"},
		},
		DefaultCategory: "Other",
	}

	assert.Equal(t, []string{"Sleep", "Fitness", "Other"}, rs.Categories())
}

func TestRuleSetFileRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	original := &RuleSet{
		Rules:           []Rule{{Keyword: "sleep", Category: "Sleep"}},
		DefaultCategory: "Other",
	}
	require.NoError(t, original.SaveToFile(path))

	loaded, err := LoadRuleSet(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRuleCategorizerCategorize(t *testing.T) {
	c := NewRuleCategorizer(&RuleSet{
		Rules: []Rule{
			{Keyword: "sleep", Category: "Sleep"},
			{Keyword: "gym", Category: "Fitness"},
		},
		DefaultCategory: "Other",
	}, nil)

	entries := []toggl.TimeEntry{
		{ID: 1, Description: "Sleep 8h"},
		{ID: 2, Description: "Gym workout"},
		{ID: 3, Description: "Errands"},
	}

	assignment, err := c.Categorize(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, CategoryAssignment{1: "Sleep", 2: "Fitness", 3: "Other"}, assignment)

	// Deterministic: same input, same output.
	again, err := c.Categorize(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, assignment, again)
}

func TestRuleCategorizerSetRules(t *testing.T) {
	c := NewRuleCategorizer(&RuleSet{
		Rules:           []Rule{{Keyword: "gym", Category: "Fitness"}},
		DefaultCategory: "Other",
	}, nil)

	entries := []toggl.TimeEntry{{ID: 1, Description: "gym"}}

	before, err := c.Categorize(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, "Fitness", before[1])

	c.SetRules(&RuleSet{
		Rules:           []Rule{{Keyword: "gym", Category: "Health"}},
		DefaultCategory: "Other",
	})

	after, err := c.Categorize(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, "Health", after[1])
}

func TestRuleCategorizerNilRules(t *testing.T) {
	c := NewRuleCategorizer(nil, nil)
	assert.NotEmpty(t, c.Rules().Rules, "nil rules fall back to the built-in set")
}
