package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ieltsprep/internal/llm/prompts"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func (f *fakeCompleter) modelID() string { return "fake" }

func newTestClient(t *testing.T, f *fakeCompleter) *Client {
	t.Helper()
	require.NoError(t, prompts.Load(prompts.Templates))
	return &Client{provider: f, variant: prompts.VariantStandard}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		{"no braces", "  sorry  ", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestOverallBand(t *testing.T) {
	tests := []struct {
		bands []float64
		want  float64
	}{
		{[]float64{6, 6, 6, 6}, 6},
		{[]float64{6.5, 6.5, 5, 7}, 6.5},   // 6.25 rounds up
		{[]float64{6, 6.5, 6.5, 6.5}, 6.5}, // 6.375
		{[]float64{7, 7, 7, 6.5}, 7},       // 6.875
		{[]float64{6, 6, 6, 5.5}, 6},       // 5.875
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OverallBand(tt.bands...), "bands %v", tt.bands)
	}
}

func TestParseBandResult(t *testing.T) {
	res, err := parseBandResult("```json\n" + `{"task_achievement": 6, "coherence_cohesion": 6.5, "lexical_resource": 5, "grammatical_range": 7, "feedback": " Good structure. "}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Overall, "overall computed when omitted") // 6.125
	assert.Equal(t, "Good structure.", res.Feedback)

	res, err = parseBandResult(`{"task_achievement": 6, "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "overall": 7, "feedback": ""}`)
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.Overall, "overall kept when present")
}

func TestParseBandResultRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":       "I cannot assess this.",
		"off scale":      `{"task_achievement": 9.5, "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "feedback": ""}`,
		"not half step":  `{"task_achievement": 6.3, "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "feedback": ""}`,
		"missing field":  `{"task_achievement": 6, "coherence_cohesion": 6, "lexical_resource": 6, "feedback": ""}`,
		"string band":    `{"task_achievement": "6", "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "feedback": ""}`,
		"negative band":  `{"task_achievement": -1, "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "feedback": ""}`,
		"overall offset": `{"task_achievement": 6, "coherence_cohesion": 6, "lexical_resource": 6, "grammatical_range": 6, "overall": 6.25, "feedback": ""}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseBandResult(raw)
			require.Error(t, err)
			var inv *ErrInvalidResponse
			assert.True(t, errors.As(err, &inv), "got %T", err)
		})
	}
}

func TestAssess(t *testing.T) {
	f := &fakeCompleter{reply: `{"task_achievement": 5, "coherence_cohesion": 5.5, "lexical_resource": 5, "grammatical_range": 5, "feedback": "Too short."}`}
	c := newTestClient(t, f)

	essay := strings.Repeat("word ", 120)
	res, err := c.Assess(context.Background(), WritingTask{TaskType: Task1, Prompt: "Describe the graph.", Essay: essay})
	require.NoError(t, err)

	assert.Equal(t, 120, res.WordCount)
	assert.True(t, res.UnderLength)
	assert.Equal(t, 5.0, res.Overall) // 5.125
	assert.Contains(t, f.system, "Describe the graph.")
	assert.Contains(t, f.system, "150 words (the response has 120 words)")
	assert.Equal(t, userInstruction, f.user)
}

func TestAssessErrors(t *testing.T) {
	c := newTestClient(t, &fakeCompleter{err: &ErrProviderUnavailable{Err: errors.New("boom")}})

	_, err := c.Assess(context.Background(), WritingTask{TaskType: "task3", Essay: "x"})
	assert.ErrorContains(t, err, "unknown task type")

	_, err = c.Assess(context.Background(), WritingTask{TaskType: Task2, Essay: "x"})
	var unavailable *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Provider: "gemini", Model: "x"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	_, err = New(Config{Provider: "openai", Model: "gpt-4o-mini", Variant: "harsh"})
	assert.ErrorContains(t, err, "invalid prompt variant")

	_, err = New(Config{Provider: "anthropic"})
	assert.ErrorContains(t, err, "API key is required")

	c, err := New(Config{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, prompts.VariantStandard, c.variant)
	assert.Equal(t, "gpt-4o-mini", c.provider.modelID())

	c, err = New(Config{Provider: "anthropic", APIKey: "k", Model: "claude-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", c.provider.modelID())
}
