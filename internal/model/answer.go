package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnswerKind tags the shape of an Answer.
type AnswerKind string

const (
	AnswerNone   AnswerKind = ""
	AnswerSingle AnswerKind = "single"
	AnswerMulti  AnswerKind = "multi"
	AnswerText   AnswerKind = "text"
)

// Answer is a submitted response: a single choice id, a list of choice ids, or free text.
//
// Decoded from JSON, a string becomes AnswerText and an array becomes AnswerMulti
// with every element coerced to a string. Coerce reinterprets the value for the
// owning question's type.
type Answer struct {
	Kind   AnswerKind
	Value  string
	Values []string
}

// SingleChoice returns an answer selecting one choice.
func SingleChoice(id string) Answer { return Answer{Kind: AnswerSingle, Value: id} }

// MultiChoice returns an answer selecting several choices.
func MultiChoice(ids ...string) Answer {
	if ids == nil {
		ids = []string{}
	}
	return Answer{Kind: AnswerMulti, Values: ids}
}

// FreeText returns a text answer.
func FreeText(s string) Answer { return Answer{Kind: AnswerText, Value: s} }

// Choice returns the selected choice id. ok is false unless the answer is a single choice.
func (a Answer) Choice() (id string, ok bool) {
	if a.Kind != AnswerSingle {
		return "", false
	}
	return a.Value, true
}

// Choices returns the selected choice ids, or nil unless the answer is a multi choice.
func (a Answer) Choices() []string {
	if a.Kind != AnswerMulti {
		return nil
	}
	return a.Values
}

// Text returns the free-text value, or "" unless the answer is text.
func (a Answer) Text() string {
	if a.Kind != AnswerText {
		return ""
	}
	return a.Value
}

// Coerce reinterprets a decoded answer for a question of type qt.
// Shapes that do not fit the question are kept as they are; the grading
// engine scores them as wrong.
func (a Answer) Coerce(qt QuestionType) Answer {
	switch qt {
	case QuestionMCQ:
		if a.Kind == AnswerText {
			return SingleChoice(a.Value)
		}
	case QuestionMulti:
		// only arrays carry a selection
	default:
		if a.Kind == AnswerSingle {
			return FreeText(a.Value)
		}
	}
	return a
}

// MarshalJSON writes the answer in its wire shape: a string or an array of strings.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerSingle, AnswerText:
		return json.Marshal(a.Value)
	case AnswerMulti:
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an array of scalars or null.
// Any other JSON value is kept as text holding its raw encoding.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		*a = FreeText(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		ids := make([]string, 0, len(raw))
		for _, r := range raw {
			ids = append(ids, scalarString(r))
		}
		*a = MultiChoice(ids...)
	default:
		*a = FreeText(string(data))
	}
	return nil
}

func scalarString(r json.RawMessage) string {
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(r))
}
