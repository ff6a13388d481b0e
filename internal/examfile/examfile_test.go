package examfile

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ieltsprep/internal/model"
)

func TestLoadYAML(t *testing.T) {
	exam, err := Load("testdata/reading-1.yaml")
	require.NoError(t, err)

	assert.Equal(t, "reading-1", exam.ID)
	assert.True(t, exam.Published)
	assert.Equal(t, 1, exam.Version, "version defaults to 1")
	assert.Equal(t, []string{"q1", "q2", "q3"}, exam.QuestionIDs())
	assert.Equal(t, model.NegativeMarking{Enabled: true, PerWrong: 0.5}, exam.Settings.NegativeMarking)

	q2, ok := exam.Question("q2")
	require.True(t, ok)
	assert.Equal(t, 2.0, q2.MaxPoints())
	q1, _ := exam.Question("q1")
	assert.Equal(t, 1.0, q1.MaxPoints())
	assert.True(t, q1.Choices[1].IsCorrect)
}

func TestLoadJSON(t *testing.T) {
	exam, err := Load("testdata/listening-1.json")
	require.NoError(t, err)

	assert.Equal(t, 2, exam.Version)
	assert.False(t, exam.Published)
	l2, ok := exam.Question("l2")
	require.True(t, ok)
	assert.Equal(t, 0.0, l2.MaxPoints(), "explicit zero points is kept")
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load("testdata/exam.toml")
	assert.Error(t, err)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"id":"x","title":"x","colour":"red"}`), FormatJSON)
	assert.Error(t, err)

	_, err = Parse([]byte("id: x\ntitle: x\ncolour: red\n"), FormatYAML)
	assert.Error(t, err)
}

func TestParseRejectsNonFiniteNumbers(t *testing.T) {
	doc := `id: x
title: X
settings:
  timeLimitMinutes: 9223372036854775807
  passThresholdPercent: .nan
  negativeMarking:
    enabled: true
    perWrong: .nan
sections:
  - id: s
    type: reading
    questions:
      - id: q1
        type: mcq
        points: .inf
        choices:
          - id: a
            isCorrect: true
          - id: b
`
	_, err := Parse([]byte(doc), FormatYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passThresholdPercent")
	assert.Contains(t, err.Error(), "perWrong must be a finite number")
	assert.Contains(t, err.Error(), "points must be a finite number")
	assert.Contains(t, err.Error(), "timeLimitMinutes")
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.json", "c.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	files, err := Glob(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a.json"), files[0])
	assert.Equal(t, filepath.Join(dir, "c.yml"), files[2])
}

func validExam() model.Exam {
	one := 1.0
	return model.Exam{
		ID:    "e",
		Title: "E",
		Sections: []model.Section{{ID: "s", Type: model.SectionReading, Questions: []model.Question{
			{ID: "q1", Type: model.QuestionMCQ, Points: &one, Choices: []model.Choice{{ID: "a", IsCorrect: true}, {ID: "b"}}},
			{ID: "q2", Type: model.QuestionMulti, Choices: []model.Choice{{ID: "a", IsCorrect: true}, {ID: "b"}}},
		}}},
	}
}

func TestValidate(t *testing.T) {
	neg := -1.0
	inf := math.Inf(1)
	nan := math.NaN()

	tests := []struct {
		name   string
		mutate func(e *model.Exam)
		want   string
	}{
		{"valid", func(e *model.Exam) {}, ""},
		{"missing id", func(e *model.Exam) { e.ID = "" }, "exam id is required"},
		{"duplicate question id", func(e *model.Exam) {
			e.Sections = append(e.Sections, model.Section{ID: "s2", Type: model.SectionListening, Questions: []model.Question{
				{ID: "q1", Type: model.QuestionFill},
			}})
		}, `question "q1": duplicate id`},
		{"mcq two correct", func(e *model.Exam) {
			e.Sections[0].Questions[0].Choices[1].IsCorrect = true
		}, "exactly one correct choice, has 2"},
		{"multi none correct", func(e *model.Exam) {
			e.Sections[0].Questions[1].Choices[0].IsCorrect = false
		}, "at least one correct choice"},
		{"negative points", func(e *model.Exam) { e.Sections[0].Questions[0].Points = &neg }, "points must not be negative"},
		{"threshold above 100", func(e *model.Exam) { e.Settings.PassThresholdPercent = 101 }, "outside [0, 100]"},
		{"negative perWrong", func(e *model.Exam) { e.Settings.NegativeMarking.PerWrong = -0.5 }, "perWrong must not be negative"},
		{"unknown question type", func(e *model.Exam) { e.Sections[0].Questions[1].Type = "ordering" }, `unknown type "ordering"`},
		{"unknown section type", func(e *model.Exam) { e.Sections[0].Type = "grammar" }, `unknown type "grammar"`},
		{"duplicate choice id", func(e *model.Exam) {
			e.Sections[0].Questions[1].Choices[1].ID = "a"
		}, `duplicate choice id "a"`},
		{"no questions", func(e *model.Exam) { e.Sections = nil }, "exam has no questions"},
		{"infinite points", func(e *model.Exam) { e.Sections[0].Questions[0].Points = &inf }, "points must be a finite number"},
		{"nan points", func(e *model.Exam) { e.Sections[0].Questions[1].Points = &nan }, "points must be a finite number"},
		{"nan threshold", func(e *model.Exam) { e.Settings.PassThresholdPercent = math.NaN() }, "outside [0, 100]"},
		{"nan perWrong", func(e *model.Exam) { e.Settings.NegativeMarking.PerWrong = math.NaN() }, "perWrong must be a finite number"},
		{"infinite perWrong", func(e *model.Exam) { e.Settings.NegativeMarking.PerWrong = math.Inf(1) }, "perWrong must be a finite number"},
		{"time limit one week", func(e *model.Exam) { e.Settings.TimeLimitMinutes = 7 * 24 * 60 }, ""},
		{"time limit too long", func(e *model.Exam) { e.Settings.TimeLimitMinutes = math.MaxInt64 }, "timeLimitMinutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExam()
			tt.mutate(&e)
			err := Validate(e)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	e := validExam()
	e.ID = ""
	e.Settings.PassThresholdPercent = -1
	err := Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exam id is required")
	assert.Contains(t, err.Error(), "outside [0, 100]")
}
