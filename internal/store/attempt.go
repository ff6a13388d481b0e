package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/ieltsprep/internal/model"
)

// storedAnswer keeps the answer kind explicit; the wire form cannot tell a
// single choice from free text.
type storedAnswer struct {
	QuestionID string           `json:"questionId"`
	Kind       model.AnswerKind `json:"kind,omitempty"`
	Value      string           `json:"value,omitempty"`
	Values     []string         `json:"values,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func encodeAnswers(recs []model.AnswerRecord) (string, error) {
	out := make([]storedAnswer, len(recs))
	for i, r := range recs {
		out[i] = storedAnswer{
			QuestionID: r.QuestionID,
			Kind:       r.Answer.Kind,
			Value:      r.Answer.Value,
			Values:     r.Answer.Values,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeAnswers(raw string) ([]model.AnswerRecord, error) {
	var in []storedAnswer
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make([]model.AnswerRecord, len(in))
	for i, a := range in {
		ans := model.Answer{Kind: a.Kind, Value: a.Value, Values: a.Values}
		if a.Kind == model.AnswerMulti && ans.Values == nil {
			ans.Values = []string{}
		}
		out[i] = model.AnswerRecord{QuestionID: a.QuestionID, Answer: ans, UpdatedAt: a.UpdatedAt.UTC()}
	}
	return out, nil
}

type attemptRow struct {
	answers string
	order   string
	details sql.NullString
}

func (r attemptRow) fill(a *model.Attempt) error {
	var err error
	if a.Answers, err = decodeAnswers(r.answers); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(r.order), &a.Order); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	if a.Order == nil {
		a.Order = []string{}
	}
	if r.details.Valid {
		var d model.GradeSummary
		if err := json.Unmarshal([]byte(r.details.String), &d); err != nil {
			return fmt.Errorf("decode details: %w", err)
		}
		a.Details = &d
	}
	return nil
}

func encodeAttempt(a model.Attempt) (answers, order string, details sql.NullString, err error) {
	if answers, err = encodeAnswers(a.Answers); err != nil {
		return "", "", details, fmt.Errorf("encode answers: %w", err)
	}
	ord := a.Order
	if ord == nil {
		ord = []string{}
	}
	b, err := json.Marshal(ord)
	if err != nil {
		return "", "", details, fmt.Errorf("encode order: %w", err)
	}
	order = string(b)
	if a.Details != nil {
		d, err := json.Marshal(a.Details)
		if err != nil {
			return "", "", details, fmt.Errorf("encode details: %w", err)
		}
		details = sql.NullString{String: string(d), Valid: true}
	}
	return answers, order, details, nil
}

func nullUserID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreateAttempt inserts a new attempt.
func (s *Store) CreateAttempt(ctx context.Context, a model.Attempt) error {
	answers, order, details, err := encodeAttempt(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO attempts (id, exam_id, user_id, status, started_at, expires_at, submitted_at,
			answers_json, order_json, score, details_json, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.ExamID, nullUserID(a.UserID), a.Status, toMillis(a.StartedAt),
		toNullMillis(a.ExpiresAt), toNullMillis(a.SubmittedAt),
		answers, order, a.Score, details, a.Version,
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

const attemptColumns = `id, exam_id, user_id, status, started_at, expires_at, submitted_at,
	answers_json, order_json, score, details_json, version`

func scanAttempt(r rowScanner) (*model.Attempt, error) {
	var a model.Attempt
	var row attemptRow
	var userID, expires, submitted sql.NullInt64
	var started int64
	if err := r.Scan(&a.ID, &a.ExamID, &userID, &a.Status, &started, &expires, &submitted,
		&row.answers, &row.order, &a.Score, &row.details, &a.Version); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		a.UserID = &id
	}
	a.StartedAt = fromMillis(started)
	a.ExpiresAt = fromNullMillis(expires)
	a.SubmittedAt = fromNullMillis(submitted)
	if err := row.fill(&a); err != nil {
		return nil, fmt.Errorf("attempt %s: %w", a.ID, err)
	}
	return &a, nil
}

// FindAttemptByID returns the attempt with id, or nil if none exists.
func (s *Store) FindAttemptByID(ctx context.Context, id string) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, s.q(`SELECT `+attemptColumns+` FROM attempts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// CountAttempts counts a user's attempts on an exam whose status is one of statuses.
func (s *Store) CountAttempts(ctx context.Context, examID string, userID int64, statuses []model.AttemptStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := []any{examID, userID}
	marks := make([]string, len(statuses))
	for i, st := range statuses {
		marks[i] = "?"
		args = append(args, st)
	}
	var n int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM attempts WHERE exam_id = ? AND user_id = ? AND status IN (`+strings.Join(marks, ", ")+`)`),
		args...,
	).Scan(&n)
	return n, err
}

// UpdateAttempt writes a over the stored attempt if the stored version equals
// expectedVersion. It reports whether the row was written.
func (s *Store) UpdateAttempt(ctx context.Context, a model.Attempt, expectedVersion int) (bool, error) {
	answers, order, details, err := encodeAttempt(a)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE attempts SET status = ?, expires_at = ?, submitted_at = ?, answers_json = ?,
			order_json = ?, score = ?, details_json = ?, version = ?
		 WHERE id = ? AND version = ?`),
		a.Status, toNullMillis(a.ExpiresAt), toNullMillis(a.SubmittedAt), answers,
		order, a.Score, details, a.Version,
		a.ID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update attempt %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListAttempts returns all attempts on an exam in start order.
func (s *Store) ListAttempts(ctx context.Context, examID string) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+attemptColumns+` FROM attempts WHERE exam_id = ? ORDER BY started_at, id`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
