package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// SectionType is the IELTS paper a section belongs to.
type SectionType string

const (
	SectionListening SectionType = "listening"
	SectionReading   SectionType = "reading"
	SectionWriting   SectionType = "writing"
	SectionSpeaking  SectionType = "speaking"
)

// QuestionType determines how an answer is shaped and graded.
type QuestionType string

const (
	QuestionMCQ   QuestionType = "mcq"
	QuestionMulti QuestionType = "multi"
	QuestionMatch QuestionType = "match"
	QuestionFill  QuestionType = "fill"
	QuestionEssay QuestionType = "essay"
)

// AttemptStatus represents the lifecycle state of an attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	// StatusGraded is reserved for manual review and not reached by the attempt service.
	StatusGraded AttemptStatus = "graded"
)

// Choice is one selectable option of an mcq or multi question.
type Choice struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty" yaml:"isCorrect"`
}

// Question is a single exam item. Question IDs are unique within an exam.
type Question struct {
	ID      string       `json:"id" yaml:"id"`
	Type    QuestionType `json:"type" yaml:"type"`
	Prompt  string       `json:"prompt" yaml:"prompt"`
	Points  *float64     `json:"points,omitempty" yaml:"points"`
	Choices []Choice     `json:"choices,omitempty" yaml:"choices"`
}

// MaxPoints returns the question's points, defaulting to 1 when unset.
func (q Question) MaxPoints() float64 {
	if q.Points == nil {
		return 1
	}
	return *q.Points
}

// Section groups questions of one IELTS paper.
type Section struct {
	ID        string      `json:"id" yaml:"id"`
	Type      SectionType `json:"type" yaml:"type"`
	Questions []Question  `json:"questions" yaml:"questions"`
}

// NegativeMarking configures the per-wrong-selection penalty.
type NegativeMarking struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	PerWrong float64 `json:"perWrong" yaml:"perWrong"`
}

// ExamSettings holds delivery and scoring settings for an exam.
type ExamSettings struct {
	TimeLimitMinutes     int             `json:"timeLimitMinutes" yaml:"timeLimitMinutes"`
	AttemptsAllowed      int             `json:"attemptsAllowed" yaml:"attemptsAllowed"`
	RandomizeQuestions   bool            `json:"randomizeQuestions" yaml:"randomizeQuestions"`
	PassThresholdPercent float64         `json:"passThresholdPercent" yaml:"passThresholdPercent"`
	NegativeMarking      NegativeMarking `json:"negativeMarking" yaml:"negativeMarking"`
	AutoGradeTypes       []string        `json:"autoGradeTypes,omitempty" yaml:"autoGradeTypes"`
}

// Exam is an exam definition as authored. It is read-only to the attempt service.
type Exam struct {
	ID        string       `json:"id" yaml:"id"`
	Title     string       `json:"title" yaml:"title"`
	Sections  []Section    `json:"sections" yaml:"sections"`
	Settings  ExamSettings `json:"settings" yaml:"settings"`
	Published bool         `json:"published" yaml:"published"`
	Version   int          `json:"version" yaml:"version"`
}

// QuestionIDs returns all question IDs across sections in document order.
func (e Exam) QuestionIDs() []string {
	var ids []string
	for _, s := range e.Sections {
		for _, q := range s.Questions {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Question looks up a question by ID.
func (e Exam) Question(id string) (Question, bool) {
	for _, s := range e.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// StudentView returns a deep copy of the exam with answer keys removed.
func (e Exam) StudentView() Exam {
	out := e
	out.Sections = make([]Section, len(e.Sections))
	for i, s := range e.Sections {
		qs := make([]Question, len(s.Questions))
		for j, q := range s.Questions {
			choices := make([]Choice, len(q.Choices))
			for k, c := range q.Choices {
				c.IsCorrect = false
				choices[k] = c
			}
			q.Choices = choices
			qs[j] = q
		}
		s.Questions = qs
		out.Sections[i] = s
	}
	return out
}

// ExamSummary is a listing row for published exams.
type ExamSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnswerRecord is a stored answer to one question.
type AnswerRecord struct {
	QuestionID string    `json:"questionId"`
	Answer     Answer    `json:"answer"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AnswerInput is an incoming answer from a save or submit call.
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Answer     Answer `json:"answer"`
}

// QuestionScore is the grading outcome for one answered question.
type QuestionScore struct {
	QuestionID string  `json:"questionId"`
	Awarded    float64 `json:"awarded"`
	MaxPoints  float64 `json:"maxPoints"`
}

// GradeSummary is the grading breakdown stored on a submitted attempt.
type GradeSummary struct {
	TotalPossible float64         `json:"totalPossible"`
	Details       []QuestionScore `json:"details"`
	Percent       float64         `json:"percent"`
	PassThreshold float64         `json:"passThreshold"`
}

// Attempt is one instance of a user (or anonymous client) taking one exam.
type Attempt struct {
	ID          string         `json:"id"`
	ExamID      string         `json:"examId"`
	UserID      *int64         `json:"userId,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	Status      AttemptStatus  `json:"status"`
	Answers     []AnswerRecord `json:"answers"`
	Order       []string       `json:"order"`
	Score       float64        `json:"score"`
	Details     *GradeSummary  `json:"details,omitempty"`
	Version     int            `json:"version"`
}

// Expired reports whether the attempt has a deadline that has passed at now.
func (a Attempt) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
