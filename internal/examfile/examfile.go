// Package examfile loads and validates exam definitions authored as JSON or YAML.
package examfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/ieltsprep/internal/model"
)

// Format is the encoding of an exam file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported exam file extension %q", filepath.Ext(path))
	}
}

// Load reads, parses and validates the exam file at path.
func Load(path string) (*model.Exam, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exam file: %w", err)
	}
	exam, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exam, nil
}

// Parse decodes and validates an exam definition.
func Parse(data []byte, format Format) (*model.Exam, error) {
	var exam model.Exam
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&exam); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&exam); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if exam.Version == 0 {
		exam.Version = 1
	}
	if err := Validate(exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Glob returns exam files in dir, sorted by name.
func Glob(dir string) ([]string, error) {
	var files []string
	for _, pat := range []string{"*.json", "*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	return files, nil
}

var (
	knownSections = map[model.SectionType]bool{
		model.SectionListening: true,
		model.SectionReading:   true,
		model.SectionWriting:   true,
		model.SectionSpeaking:  true,
	}
	knownQuestions = map[model.QuestionType]bool{
		model.QuestionMCQ:   true,
		model.QuestionMulti: true,
		model.QuestionMatch: true,
		model.QuestionFill:  true,
		model.QuestionEssay: true,
	}
)

// maxTimeLimitMinutes caps the time limit at one week.
const maxTimeLimitMinutes = 7 * 24 * 60

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks the authoring invariants the grading engine relies on.
// All problems are reported together.
func Validate(e model.Exam) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if e.ID == "" {
		add("exam id is required")
	}
	if e.Title == "" {
		add("exam title is required")
	}
	s := e.Settings
	if !finite(s.PassThresholdPercent) || s.PassThresholdPercent < 0 || s.PassThresholdPercent > 100 {
		add("passThresholdPercent %v outside [0, 100]", s.PassThresholdPercent)
	}
	if !finite(s.NegativeMarking.PerWrong) {
		add("negativeMarking.perWrong must be a finite number")
	} else if s.NegativeMarking.PerWrong < 0 {
		add("negativeMarking.perWrong must not be negative")
	}
	if s.TimeLimitMinutes < 0 {
		add("timeLimitMinutes must not be negative")
	} else if s.TimeLimitMinutes > maxTimeLimitMinutes {
		add("timeLimitMinutes %d exceeds %d", s.TimeLimitMinutes, maxTimeLimitMinutes)
	}
	if s.AttemptsAllowed < 0 {
		add("attemptsAllowed must not be negative")
	}

	seen := make(map[string]string)
	for _, sec := range e.Sections {
		if !knownSections[sec.Type] {
			add("section %q: unknown type %q", sec.ID, sec.Type)
		}
		for _, q := range sec.Questions {
			if q.ID == "" {
				add("section %q: question without id", sec.ID)
				continue
			}
			if prev, dup := seen[q.ID]; dup {
				add("question %q: duplicate id (first in section %q)", q.ID, prev)
			}
			seen[q.ID] = sec.ID
			if !knownQuestions[q.Type] {
				add("question %q: unknown type %q", q.ID, q.Type)
			}
			if !finite(q.MaxPoints()) {
				add("question %q: points must be a finite number", q.ID)
			} else if q.MaxPoints() < 0 {
				add("question %q: points must not be negative", q.ID)
			}
			correct := 0
			choiceIDs := make(map[string]bool, len(q.Choices))
			for _, c := range q.Choices {
				if choiceIDs[c.ID] {
					add("question %q: duplicate choice id %q", q.ID, c.ID)
				}
				choiceIDs[c.ID] = true
				if c.IsCorrect {
					correct++
				}
			}
			switch q.Type {
			case model.QuestionMCQ:
				if correct != 1 {
					add("question %q: mcq needs exactly one correct choice, has %d", q.ID, correct)
				}
			case model.QuestionMulti:
				if correct < 1 {
					add("question %q: multi needs at least one correct choice", q.ID)
				}
			}
		}
	}
	if len(seen) == 0 {
		add("exam has no questions")
	}
	return errors.Join(errs...)
}
