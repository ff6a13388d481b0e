// Package prompts renders the writing-assessment prompts sent to the LLM.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var Templates embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxEssayRunes = 10000

// Variant represents a marking strictness level.
type Variant string

const (
	// VariantStrict marks close to examiner standard with no benefit of the doubt.
	VariantStrict Variant = "strict"
	// VariantStandard is the default.
	VariantStandard Variant = "standard"
	// VariantLenient is meant for early practice.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

var (
	loadOnce        sync.Once
	loadErr         error
	assessTemplates map[Variant]*template.Template
)

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// AssessData holds template data for assessment prompts.
type AssessData struct {
	TaskType   string
	TaskPrompt string
	MinWords   int
	WordCount  int
	Essay      string
}

// Load parses the assessment templates from fsys, which must contain
// templates/assess_<variant>.txt for every variant. Only the first call has effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		assessTemplates = make(map[Variant]*template.Template)
		for _, v := range []Variant{VariantStrict, VariantStandard, VariantLenient} {
			file := "templates/assess_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("assess_" + string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			assessTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildAssessPrompt renders the system prompt for assessing one essay.
func BuildAssessPrompt(variant Variant, data AssessData) (string, error) {
	if assessTemplates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := assessTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data.Essay = SanitizeEssay(data.Essay)
	data.TaskPrompt = strings.TrimSpace(data.TaskPrompt)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeEssay strips prompt delimiter tags and truncates very long input.
func SanitizeEssay(essay string) string {
	essay = studentAnswerRegex.ReplaceAllString(essay, "")
	essay = systemInstructionsRegex.ReplaceAllString(essay, "")
	essay = strings.TrimSpace(essay)

	if essay == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(essay) > maxEssayRunes {
		runes := []rune(essay)
		essay = string(runes[:maxEssayRunes]) + "\n\n[Answer truncated due to length]"
	}
	return essay
}
