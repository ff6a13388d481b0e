// Package llm assesses IELTS writing responses with an LLM provider.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pavelanni/ieltsprep/internal/llm/prompts"
)

// TaskType is the IELTS writing task being assessed.
type TaskType string

const (
	Task1 TaskType = "task1"
	Task2 TaskType = "task2"
)

// Minimum word counts required by the IELTS writing paper.
var minWords = map[TaskType]int{
	Task1: 150,
	Task2: 250,
}

// MinWords returns the required length for a task type, or 0 for an unknown type.
func MinWords(t TaskType) int { return minWords[t] }

// WritingTask is one essay submitted for assessment.
type WritingTask struct {
	TaskType TaskType `json:"taskType"`
	Prompt   string   `json:"prompt"`
	Essay    string   `json:"essay"`
}

// BandResult holds band scores for the four writing criteria.
type BandResult struct {
	TaskAchievement   float64 `json:"task_achievement"`
	CoherenceCohesion float64 `json:"coherence_cohesion"`
	LexicalResource   float64 `json:"lexical_resource"`
	GrammaticalRange  float64 `json:"grammatical_range"`
	Overall           float64 `json:"overall"`
	Feedback          string  `json:"feedback"`
	WordCount         int     `json:"word_count"`
	UnderLength       bool    `json:"under_length"`
}

// Assessor scores a writing task.
type Assessor interface {
	Assess(ctx context.Context, task WritingTask) (*BandResult, error)
}

// completer sends one system prompt and one user message and returns the raw reply text.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
	modelID() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "openai" or "anthropic"
	BaseURL  string
	APIKey   string
	Model    string
	Variant  prompts.Variant
}

// Client implements Assessor on top of a provider.
type Client struct {
	provider completer
	variant  prompts.Variant
}

// New creates a Client for cfg.Provider.
func New(cfg Config) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	variant := cfg.Variant
	if variant == "" {
		variant = prompts.VariantStandard
	}
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}

	var p completer
	var err error
	switch cfg.Provider {
	case "", "openai":
		p, err = newOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case "anthropic":
		p, err = newAnthropicProvider(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("LLM assessor configured", "provider", cfg.Provider, "model", p.modelID(), "variant", variant)
	return &Client{provider: p, variant: variant}, nil
}

const userInstruction = "Assess the response and reply with the JSON object only."

// Assess renders the prompt, calls the provider and parses the band scores.
func (c *Client) Assess(ctx context.Context, task WritingTask) (*BandResult, error) {
	if task.TaskType != Task1 && task.TaskType != Task2 {
		return nil, fmt.Errorf("unknown task type %q", task.TaskType)
	}
	words := len(strings.Fields(task.Essay))
	system, err := prompts.BuildAssessPrompt(c.variant, prompts.AssessData{
		TaskType:   string(task.TaskType),
		TaskPrompt: task.Prompt,
		MinWords:   minWords[task.TaskType],
		WordCount:  words,
		Essay:      task.Essay,
	})
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := c.provider.complete(ctx, system, userInstruction)
	if err != nil {
		return nil, err
	}
	slog.Debug("LLM response", "raw", raw)

	res, err := parseBandResult(raw)
	if err != nil {
		return nil, err
	}
	res.WordCount = words
	res.UnderLength = words < minWords[task.TaskType]
	return res, nil
}

// bandReply mirrors BandResult with an optional overall band.
type bandReply struct {
	TaskAchievement   float64  `json:"task_achievement"`
	CoherenceCohesion float64  `json:"coherence_cohesion"`
	LexicalResource   float64  `json:"lexical_resource"`
	GrammaticalRange  float64  `json:"grammatical_range"`
	Overall           *float64 `json:"overall"`
	Feedback          string   `json:"feedback"`
}

func parseBandResult(raw string) (*BandResult, error) {
	body := extractJSON(raw)
	if err := validateResponse(bandSchema, json.RawMessage(body)); err != nil {
		return nil, err
	}
	var r bandReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, &ErrInvalidResponse{Content: json.RawMessage(body), Err: err}
	}
	res := &BandResult{
		TaskAchievement:   r.TaskAchievement,
		CoherenceCohesion: r.CoherenceCohesion,
		LexicalResource:   r.LexicalResource,
		GrammaticalRange:  r.GrammaticalRange,
		Feedback:          strings.TrimSpace(r.Feedback),
	}
	if r.Overall != nil {
		res.Overall = *r.Overall
	} else {
		res.Overall = OverallBand(r.TaskAchievement, r.CoherenceCohesion, r.LexicalResource, r.GrammaticalRange)
	}
	return res, nil
}

// OverallBand averages criterion bands and rounds to the nearest half band.
// Quarter marks round up, as on the IELTS scale.
func OverallBand(bands ...float64) float64 {
	if len(bands) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bands {
		sum += b
	}
	return math.Round(sum/float64(len(bands))*2) / 2
}

// extractJSON strips markdown code fences and returns the text between the
// first '{' and the last '}'. Replies without braces are returned trimmed.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
