package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/ieltsprep/internal/model"
)

// PutExam inserts or replaces an exam definition.
func (s *Store) PutExam(ctx context.Context, e model.Exam) error {
	sections, err := json.Marshal(e.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	settings, err := json.Marshal(e.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if e.Version == 0 {
		e.Version = 1
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO exams (id, title, published, version, sections_json, settings_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			published = excluded.published,
			version = excluded.version,
			sections_json = excluded.sections_json,
			settings_json = excluded.settings_json,
			updated_at = excluded.updated_at`),
		e.ID, e.Title, e.Published, e.Version, string(sections), string(settings), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put exam %s: %w", e.ID, err)
	}
	slog.Info("stored exam", "exam_id", e.ID, "version", e.Version, "published", e.Published)
	return nil
}

// FindExamByID returns the exam with id, or nil if none exists.
func (s *Store) FindExamByID(ctx context.Context, id string) (*model.Exam, error) {
	var e model.Exam
	var sections, settings string
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, title, published, version, sections_json, settings_json FROM exams WHERE id = ?`), id,
	).Scan(&e.ID, &e.Title, &e.Published, &e.Version, &sections, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sections), &e.Sections); err != nil {
		return nil, fmt.Errorf("decode sections of exam %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(settings), &e.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of exam %s: %w", id, err)
	}
	return &e, nil
}

// ListExams returns exam summaries ordered by id.
func (s *Store) ListExams(ctx context.Context, publishedOnly bool) ([]model.ExamSummary, error) {
	query := `SELECT id, title, published, version, updated_at FROM exams`
	var args []any
	if publishedOnly {
		query += ` WHERE published = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		var updated int64
		if err := rows.Scan(&e.ID, &e.Title, &e.Published, &e.Version, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = fromMillis(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}
