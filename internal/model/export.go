package model

import "time"

// ResultsExport is the top-level JSON structure for attempt result export.
type ResultsExport struct {
	ExamID      string          `json:"exam_id"`
	Title       string          `json:"title"`
	ExportedAt  time.Time       `json:"exported_at"`
	NumAttempts int             `json:"num_attempts"`
	Results     []AttemptResult `json:"results"`
}

// AttemptResult holds one attempt's outcome for export.
type AttemptResult struct {
	AttemptID     string          `json:"attempt_id"`
	Username      string          `json:"username,omitempty"`
	DisplayName   string          `json:"display_name,omitempty"`
	AttemptNumber int             `json:"attempt_number"`
	Status        AttemptStatus   `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	Score         float64         `json:"score"`
	TotalPossible float64         `json:"total_possible"`
	Percent       float64         `json:"percent"`
	Pass          bool            `json:"pass"`
	Questions     []QuestionScore `json:"questions"`
}
