// Package attempt implements the lifecycle of an exam attempt: start, autosave
// and submit with grading.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/ieltsprep/internal/grading"
	"github.com/pavelanni/ieltsprep/internal/model"
)

// ExamStore reads exam definitions. A missing exam is returned as (nil, nil).
type ExamStore interface {
	FindExamByID(ctx context.Context, id string) (*model.Exam, error)
}

// AttemptStore persists attempts. A missing attempt is returned as (nil, nil).
// UpdateAttempt replaces the stored attempt only if its version still equals
// expectedVersion and reports whether a row was written.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a model.Attempt) error
	FindAttemptByID(ctx context.Context, id string) (*model.Attempt, error)
	CountAttempts(ctx context.Context, examID string, userID int64, statuses []model.AttemptStatus) (int, error)
	UpdateAttempt(ctx context.Context, a model.Attempt, expectedVersion int) (bool, error)
}

// StartResult is returned by Start.
type StartResult struct {
	AttemptID string     `json:"attemptId"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Order     []string   `json:"order"`
}

// SaveResult is returned by Save.
type SaveResult struct {
	Version int `json:"version"`
}

// SubmitResult is returned by Submit.
type SubmitResult struct {
	Score   float64               `json:"score"`
	Total   float64               `json:"total"`
	Percent float64               `json:"percent"`
	Pass    bool                  `json:"pass"`
	Details []model.QuestionScore `json:"details"`
}

// Service runs attempt operations against the exam and attempt stores.
type Service struct {
	exams    ExamStore
	attempts AttemptStore
	now      func() time.Time
	intN     func(n int) int
	newID    func() string
	gradeOpt []grading.Option

	attemptLocks *keyedMutex
	startLocks   *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRand sets the random source used to shuffle question order.
// The source must be safe for concurrent use or the Service used from one goroutine.
func WithRand(intN func(n int) int) Option { return func(s *Service) { s.intN = intN } }

// WithIDGenerator replaces the attempt id generator.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// WithGradingOptions passes options to the grading engine on submit.
func WithGradingOptions(opts ...grading.Option) Option {
	return func(s *Service) { s.gradeOpt = append(s.gradeOpt, opts...) }
}

// NewService creates a Service.
func NewService(exams ExamStore, attempts AttemptStore, opts ...Option) *Service {
	s := &Service{
		exams:        exams,
		attempts:     attempts,
		now:          time.Now,
		intN:         rand.IntN,
		newID:        uuid.NewString,
		attemptLocks: newKeyedMutex(),
		startLocks:   newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var finishedStatuses = []model.AttemptStatus{model.StatusSubmitted, model.StatusGraded}

// Start creates a new in-progress attempt for examID. userID is nil for anonymous attempts,
// which are never subject to the attempts-allowed limit.
func (s *Service) Start(ctx context.Context, examID string, userID *int64) (*StartResult, error) {
	exam, err := s.exams.FindExamByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam %s: %w", examID, err)
	}
	if exam == nil || !exam.Published {
		return nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}

	if userID != nil && exam.Settings.AttemptsAllowed > 0 {
		// count and create must not interleave with another start by the same user.
		unlock := s.startLocks.Lock(examID + "/" + strconv.FormatInt(*userID, 10))
		defer unlock()

		used, err := s.attempts.CountAttempts(ctx, examID, *userID, finishedStatuses)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		if used >= exam.Settings.AttemptsAllowed {
			slog.Info("attempt limit reached", "exam_id", examID, "user_id", *userID, "used", used, "allowed", exam.Settings.AttemptsAllowed)
			return nil, ErrAttemptLimitExceeded
		}
	}

	now := s.now()
	var expiresAt *time.Time
	if exam.Settings.TimeLimitMinutes > 0 {
		t := now.Add(time.Duration(exam.Settings.TimeLimitMinutes) * time.Minute)
		expiresAt = &t
	}

	order := []string{}
	if exam.Settings.RandomizeQuestions {
		order = s.shuffle(exam.QuestionIDs())
	}

	a := model.Attempt{
		ID:        s.newID(),
		ExamID:    examID,
		UserID:    userID,
		StartedAt: now,
		ExpiresAt: expiresAt,
		Status:    model.StatusInProgress,
		Answers:   []model.AnswerRecord{},
		Order:     order,
		Version:   1,
	}
	if err := s.attempts.CreateAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	slog.Info("attempt started", "attempt_id", a.ID, "exam_id", examID, "anonymous", userID == nil)

	return &StartResult{AttemptID: a.ID, ExpiresAt: expiresAt, Order: order}, nil
}

// Get returns an attempt after checking it belongs to examID.
func (s *Service) Get(ctx context.Context, examID, attemptID string) (*model.Attempt, error) {
	return s.load(ctx, examID, attemptID)
}

// Save merges answers into an in-progress attempt and returns the new version.
// No scoring is performed.
func (s *Service) Save(ctx context.Context, examID, attemptID string, answers []model.AnswerInput) (*SaveResult, error) {
	unlock := s.attemptLocks.Lock(attemptID)
	defer unlock()

	a, err := s.load(ctx, examID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusInProgress {
		return nil, fmt.Errorf("save attempt %s (%s): %w", attemptID, a.Status, ErrInvalidState)
	}
	now := s.now()
	if a.Expired(now) {
		return nil, fmt.Errorf("save attempt %s: %w", attemptID, ErrExpired)
	}

	prev := a.Version
	a.Answers = Merge(a.Answers, answers, now)
	a.Version++
	if err := s.update(ctx, *a, prev); err != nil {
		return nil, err
	}
	slog.Debug("attempt saved", "attempt_id", attemptID, "answers", len(a.Answers), "version", a.Version)

	return &SaveResult{Version: a.Version}, nil
}

// Submit merges the final answers, grades the attempt and marks it submitted.
func (s *Service) Submit(ctx context.Context, examID, attemptID string, answers []model.AnswerInput) (*SubmitResult, error) {
	unlock := s.attemptLocks.Lock(attemptID)
	defer unlock()

	a, err := s.load(ctx, examID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusInProgress {
		return nil, fmt.Errorf("submit attempt %s (%s): %w", attemptID, a.Status, ErrAlreadySubmitted)
	}
	now := s.now()
	if a.Expired(now) {
		return nil, fmt.Errorf("submit attempt %s: %w", attemptID, ErrExpired)
	}

	exam, err := s.exams.FindExamByID(ctx, a.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam %s: %w", a.ExamID, err)
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %s: %w", a.ExamID, ErrNotFound)
	}

	merged := coerceAnswers(*exam, Merge(a.Answers, answers, now))
	res := grading.GradeAttempt(*exam, merged, s.gradeOpt...)

	prev := a.Version
	a.Answers = merged
	a.Score = res.TotalScore
	a.Details = res.Summary()
	a.Status = model.StatusSubmitted
	a.SubmittedAt = &now
	a.Version++
	if err := s.update(ctx, *a, prev); err != nil {
		return nil, err
	}
	slog.Info("attempt submitted",
		"attempt_id", attemptID,
		"exam_id", examID,
		"score", res.TotalScore,
		"total", res.TotalPossible,
		"pass", res.Pass,
	)

	return &SubmitResult{
		Score:   res.TotalScore,
		Total:   res.TotalPossible,
		Percent: res.Percent,
		Pass:    res.Pass,
		Details: res.Details,
	}, nil
}

func (s *Service) load(ctx context.Context, examID, attemptID string) (*model.Attempt, error) {
	a, err := s.attempts.FindAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	if a == nil {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.ExamID != examID {
		return nil, fmt.Errorf("attempt %s, exam %s: %w", attemptID, examID, ErrMismatch)
	}
	return a, nil
}

func (s *Service) update(ctx context.Context, a model.Attempt, expectedVersion int) error {
	ok, err := s.attempts.UpdateAttempt(ctx, a, expectedVersion)
	if err != nil {
		return fmt.Errorf("update attempt %s: %w", a.ID, err)
	}
	if !ok {
		slog.Warn("attempt version conflict", "attempt_id", a.ID, "expected_version", expectedVersion)
		return fmt.Errorf("update attempt %s: %w", a.ID, ErrConflict)
	}
	return nil
}

// shuffle returns a Fisher–Yates permutation of ids.
func (s *Service) shuffle(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := s.intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// coerceAnswers reinterprets each answer for its question's declared type.
// Answers to questions not in the exam are left untouched.
func coerceAnswers(exam model.Exam, answers []model.AnswerRecord) []model.AnswerRecord {
	types := make(map[string]model.QuestionType)
	for _, sec := range exam.Sections {
		for _, q := range sec.Questions {
			types[q.ID] = q.Type
		}
	}
	out := make([]model.AnswerRecord, len(answers))
	for i, r := range answers {
		if qt, ok := types[r.QuestionID]; ok {
			r.Answer = r.Answer.Coerce(qt)
		}
		out[i] = r
	}
	return out
}
