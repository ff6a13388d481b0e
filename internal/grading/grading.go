// Package grading scores a finished attempt against an exam definition.
//
// Only mcq and multi questions are scored here. Every other question type is
// awarded zero and left for manual or LLM review.
package grading

import (
	"github.com/pavelanni/ieltsprep/internal/model"
)

// PenaltyPolicy decides when the negative-marking penalty applies.
type PenaltyPolicy int

const (
	// PenaltyWhenEnabled applies perWrong only if negativeMarking.enabled is set.
	PenaltyWhenEnabled PenaltyPolicy = iota
	// PenaltyWhenPerWrong applies perWrong whenever it is positive, ignoring enabled.
	PenaltyWhenPerWrong
)

// Result is the outcome of grading one attempt.
type Result struct {
	TotalPossible float64               `json:"totalPossible"`
	TotalScore    float64               `json:"totalScore"`
	Percent       float64               `json:"percent"`
	Pass          bool                  `json:"pass"`
	PassThreshold float64               `json:"passThreshold"`
	Details       []model.QuestionScore `json:"details"`
}

// Summary converts the result into the breakdown stored on an attempt.
func (r Result) Summary() *model.GradeSummary {
	return &model.GradeSummary{
		TotalPossible: r.TotalPossible,
		Details:       r.Details,
		Percent:       r.Percent,
		PassThreshold: r.PassThreshold,
	}
}

// Option configures GradeAttempt.
type Option func(*config)

type config struct {
	penalty     PenaltyPolicy
	dedupeMulti bool
}

// WithPenaltyPolicy selects when negative marking is applied.
func WithPenaltyPolicy(p PenaltyPolicy) Option { return func(c *config) { c.penalty = p } }

// WithDedupeMulti collapses repeated ids in a multi answer before counting.
func WithDedupeMulti(b bool) Option { return func(c *config) { c.dedupeMulti = b } }

// GradeAttempt scores answers against exam. It never fails: answers to unknown
// questions are skipped and answers of the wrong shape score zero.
func GradeAttempt(exam model.Exam, answers []model.AnswerRecord, opts ...Option) Result {
	cfg := &config{penalty: PenaltyWhenEnabled}
	for _, o := range opts {
		o(cfg)
	}

	questions := make(map[string]model.Question)
	for _, s := range exam.Sections {
		for _, q := range s.Questions {
			questions[q.ID] = q
		}
	}

	negative := penalty(exam.Settings.NegativeMarking, cfg.penalty)

	res := Result{
		PassThreshold: exam.Settings.PassThresholdPercent,
		Details:       make([]model.QuestionScore, 0, len(answers)),
	}
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		maxPoints := q.MaxPoints()
		res.TotalPossible += maxPoints

		var awarded float64
		switch q.Type {
		case model.QuestionMCQ:
			awarded = scoreMCQ(q, a.Answer, maxPoints, negative)
		case model.QuestionMulti:
			awarded = scoreMulti(q, a.Answer, maxPoints, negative, cfg.dedupeMulti)
		}
		if awarded < 0 {
			awarded = 0
		}

		res.TotalScore += awarded
		res.Details = append(res.Details, model.QuestionScore{
			QuestionID: a.QuestionID,
			Awarded:    awarded,
			MaxPoints:  maxPoints,
		})
	}

	if res.TotalPossible > 0 {
		res.Percent = res.TotalScore / res.TotalPossible * 100
	}
	res.Pass = res.Percent >= res.PassThreshold
	return res
}

func penalty(nm model.NegativeMarking, policy PenaltyPolicy) float64 {
	if nm.PerWrong <= 0 {
		return 0
	}
	if policy == PenaltyWhenEnabled && !nm.Enabled {
		return 0
	}
	return nm.PerWrong
}

func scoreMCQ(q model.Question, ans model.Answer, maxPoints, negative float64) float64 {
	var correct string
	found := false
	for _, c := range q.Choices {
		if c.IsCorrect {
			correct = c.ID
			found = true
			break
		}
	}
	given, ok := ans.Choice()
	if found && ok && given == correct {
		return maxPoints
	}
	return 0 - negative
}

func scoreMulti(q model.Question, ans model.Answer, maxPoints, negative float64, dedupe bool) float64 {
	correctIDs := make(map[string]struct{})
	for _, c := range q.Choices {
		if c.IsCorrect {
			correctIDs[c.ID] = struct{}{}
		}
	}
	if len(correctIDs) == 0 {
		return 0
	}

	given := ans.Choices()
	if dedupe {
		given = unique(given)
	}
	// correctCount is the size of the intersection, so a repeated correct id
	// is credited once and its repeats count as wrong.
	hit := make(map[string]struct{}, len(correctIDs))
	for _, id := range given {
		if _, ok := correctIDs[id]; ok {
			hit[id] = struct{}{}
		}
	}
	correctCount := len(hit)
	wrongCount := len(given) - correctCount

	awarded := maxPoints*(float64(correctCount)/float64(len(correctIDs))) - negative*float64(wrongCount)
	if awarded < 0 {
		return 0
	}
	return awarded
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
