package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ieltsprep/internal/model"
)

func pts(v float64) *float64 { return &v }

// sampleExam has one mcq (c1 correct, 1 point) and one multi (c3, c4 correct, 2 points).
func sampleExam(perWrong float64, enabled bool, threshold float64) model.Exam {
	return model.Exam{
		ID: "exam-1",
		Sections: []model.Section{
			{
				ID:   "reading",
				Type: model.SectionReading,
				Questions: []model.Question{
					{ID: "q1", Type: model.QuestionMCQ, Points: pts(1), Choices: []model.Choice{
						{ID: "c1", IsCorrect: true}, {ID: "c2"},
					}},
				},
			},
			{
				ID:   "listening",
				Type: model.SectionListening,
				Questions: []model.Question{
					{ID: "q2", Type: model.QuestionMulti, Points: pts(2), Choices: []model.Choice{
						{ID: "c3", IsCorrect: true}, {ID: "c4", IsCorrect: true}, {ID: "c5"},
					}},
				},
			},
		},
		Settings: model.ExamSettings{
			PassThresholdPercent: threshold,
			NegativeMarking:      model.NegativeMarking{Enabled: enabled, PerWrong: perWrong},
		},
		Published: true,
	}
}

func records(pairs ...any) []model.AnswerRecord {
	var out []model.AnswerRecord
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.AnswerRecord{
			QuestionID: pairs[i].(string),
			Answer:     pairs[i+1].(model.Answer),
			UpdatedAt:  time.Unix(0, 0),
		})
	}
	return out
}

func awardedFor(t *testing.T, r Result, qid string) float64 {
	t.Helper()
	for _, d := range r.Details {
		if d.QuestionID == qid {
			return d.Awarded
		}
	}
	t.Fatalf("no detail for %s", qid)
	return 0
}

func TestGradeMCQ(t *testing.T) {
	exam := model.Exam{
		Sections: []model.Section{{Questions: []model.Question{
			{ID: "q", Type: model.QuestionMCQ, Points: pts(2), Choices: []model.Choice{{ID: "a", IsCorrect: true}, {ID: "b"}}},
		}}},
	}

	tests := []struct {
		name     string
		answer   model.Answer
		perWrong float64
		want     float64
	}{
		{"correct", model.SingleChoice("a"), 0, 2},
		{"wrong no penalty", model.SingleChoice("b"), 0, 0},
		{"wrong penalty clamps to zero", model.SingleChoice("b"), 0.5, 0},
		{"array answer is wrong", model.MultiChoice("a"), 0, 0},
		{"missing answer is wrong", model.Answer{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam.Settings.NegativeMarking = model.NegativeMarking{Enabled: true, PerWrong: tt.perWrong}
			r := GradeAttempt(exam, records("q", tt.answer))
			assert.Equal(t, tt.want, awardedFor(t, r, "q"))
			assert.Equal(t, 2.0, r.TotalPossible)
		})
	}
}

func TestGradeMultiPartialCredit(t *testing.T) {
	exam := sampleExam(0.5, true, 0)

	tests := []struct {
		name   string
		answer model.Answer
		want   float64
	}{
		{"all correct", model.MultiChoice("c3", "c4"), 2},
		{"one right one wrong", model.MultiChoice("c3", "c5"), 0.5},
		{"one right", model.MultiChoice("c4"), 1},
		{"only wrong clamps", model.MultiChoice("c5"), 0},
		{"unknown id counts as wrong", model.MultiChoice("c3", "zz"), 0.5},
		{"string answer treated as empty", model.FreeText("c3"), 0},
		{"empty selection", model.MultiChoice(), 0},
		{"repeated wrong id counts twice", model.MultiChoice("c3", "c4", "c5", "c5"), 1},
		{"repeated correct id credited once", model.MultiChoice("c3", "c3"), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := GradeAttempt(exam, records("q2", tt.answer))
			assert.InDelta(t, tt.want, awardedFor(t, r, "q2"), 1e-9)
		})
	}
}

func TestGradeMultiDedupe(t *testing.T) {
	exam := sampleExam(0.5, true, 0)

	r := GradeAttempt(exam, records("q2", model.MultiChoice("c3", "c5", "c5")), WithDedupeMulti(true))
	assert.Equal(t, 0.5, awardedFor(t, r, "q2"))

	r = GradeAttempt(exam, records("q2", model.MultiChoice("c3", "c3")), WithDedupeMulti(true))
	assert.Equal(t, 1.0, awardedFor(t, r, "q2"))
}

func TestGradeMultiNoCorrectChoices(t *testing.T) {
	exam := model.Exam{Sections: []model.Section{{Questions: []model.Question{
		{ID: "q", Type: model.QuestionMulti, Choices: []model.Choice{{ID: "a"}}},
	}}}}
	r := GradeAttempt(exam, records("q", model.MultiChoice("a")))
	assert.Equal(t, 0.0, r.TotalScore)
	assert.Equal(t, 1.0, r.TotalPossible)
}

func TestGradePenaltyPolicy(t *testing.T) {
	exam := sampleExam(0.5, false, 0)
	answers := records("q1", model.SingleChoice("c2"), "q2", model.MultiChoice("c3", "c5"))

	r := GradeAttempt(exam, answers)
	assert.Equal(t, 1.0, r.TotalScore, "disabled negative marking must not penalize by default")

	r = GradeAttempt(exam, answers, WithPenaltyPolicy(PenaltyWhenPerWrong))
	assert.Equal(t, 0.5, r.TotalScore)
}

func TestGradeNonAutoTypesScoreZero(t *testing.T) {
	exam := model.Exam{Sections: []model.Section{{Questions: []model.Question{
		{ID: "e", Type: model.QuestionEssay, Points: pts(6)},
		{ID: "f", Type: model.QuestionFill},
		{ID: "m", Type: model.QuestionMatch},
		{ID: "x", Type: "ordering"},
	}}}}
	r := GradeAttempt(exam, records(
		"e", model.FreeText("long essay"),
		"f", model.FreeText("answer"),
		"m", model.MultiChoice("1-a"),
		"x", model.FreeText("?"),
	))
	assert.Equal(t, 0.0, r.TotalScore)
	assert.Equal(t, 9.0, r.TotalPossible)
	assert.Len(t, r.Details, 4)
}

func TestGradeUnknownQuestionsIgnored(t *testing.T) {
	exam := sampleExam(0, false, 0)
	r := GradeAttempt(exam, records("q1", model.SingleChoice("c1"), "ghost", model.SingleChoice("c1")))
	assert.Equal(t, 1.0, r.TotalPossible)
	assert.Equal(t, 1.0, r.TotalScore)
	require.Len(t, r.Details, 1)
	assert.Equal(t, "q1", r.Details[0].QuestionID)
}

func TestGradePassBoundary(t *testing.T) {
	exam := model.Exam{Sections: []model.Section{{Questions: []model.Question{
		{ID: "a", Type: model.QuestionMCQ, Choices: []model.Choice{{ID: "y", IsCorrect: true}, {ID: "n"}}},
		{ID: "b", Type: model.QuestionMCQ, Choices: []model.Choice{{ID: "y", IsCorrect: true}, {ID: "n"}}},
	}}}}
	answers := records("a", model.SingleChoice("y"), "b", model.SingleChoice("n"))

	exam.Settings.PassThresholdPercent = 50
	r := GradeAttempt(exam, answers)
	assert.Equal(t, 50.0, r.Percent)
	assert.True(t, r.Pass, "percent equal to threshold passes")

	exam.Settings.PassThresholdPercent = 50.5
	assert.False(t, GradeAttempt(exam, answers).Pass)
}

func TestGradeZeroPossible(t *testing.T) {
	exam := sampleExam(0, false, 0)
	r := GradeAttempt(exam, records("ghost", model.SingleChoice("c1")))
	assert.Equal(t, 0.0, r.TotalPossible)
	assert.Equal(t, 0.0, r.Percent)
	assert.True(t, r.Pass, "no threshold passes by default")

	exam.Settings.PassThresholdPercent = 50
	assert.False(t, GradeAttempt(exam, nil).Pass)
}

func TestGradeScenarioA(t *testing.T) {
	exam := sampleExam(0.5, true, 50)
	r := GradeAttempt(exam, records("q1", model.SingleChoice("c1"), "q2", model.MultiChoice("c3", "c4")))
	assert.Equal(t, 3.0, r.TotalPossible)
	assert.Equal(t, 3.0, r.TotalScore)
	assert.Equal(t, 100.0, r.Percent)
	assert.True(t, r.Pass)
}

func TestGradeScenarioB(t *testing.T) {
	exam := sampleExam(0.5, true, 50)
	r := GradeAttempt(exam, records("q1", model.SingleChoice("c2"), "q2", model.MultiChoice("c3", "c5")))
	assert.Equal(t, 3.0, r.TotalPossible)
	assert.Equal(t, 0.5, r.TotalScore)
	assert.InDelta(t, 100.0/6, r.Percent, 1e-9)
	assert.False(t, r.Pass)
}

func TestGradeDetailsFollowAnswerOrder(t *testing.T) {
	exam := sampleExam(0, false, 0)
	r := GradeAttempt(exam, records("q2", model.MultiChoice("c3"), "q1", model.SingleChoice("c1")))
	require.Len(t, r.Details, 2)
	assert.Equal(t, "q2", r.Details[0].QuestionID)
	assert.Equal(t, "q1", r.Details[1].QuestionID)

	s := r.Summary()
	assert.Equal(t, r.TotalPossible, s.TotalPossible)
	assert.Equal(t, r.Details, s.Details)
}
