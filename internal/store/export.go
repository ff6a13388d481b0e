package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/ieltsprep/internal/model"
)

// ExportResults builds export-ready results for every attempt on an exam.
// It returns nil if the exam does not exist.
func (s *Store) ExportResults(ctx context.Context, examID string) (*model.ResultsExport, error) {
	exam, err := s.FindExamByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam == nil {
		return nil, nil
	}
	attempts, err := s.ListAttempts(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	// Track attempt count per user for attempt_number.
	perUser := make(map[int64]int)
	users := make(map[int64]*model.User)

	results := make([]model.AttemptResult, 0, len(attempts))
	for _, a := range attempts {
		r := model.AttemptResult{
			AttemptID:     a.ID,
			AttemptNumber: 1,
			Status:        a.Status,
			StartedAt:     a.StartedAt,
			SubmittedAt:   a.SubmittedAt,
			Score:         a.Score,
			Questions:     []model.QuestionScore{},
		}
		if a.UserID != nil {
			uid := *a.UserID
			perUser[uid]++
			r.AttemptNumber = perUser[uid]
			u, ok := users[uid]
			if !ok {
				if u, err = s.GetUserByID(uid); err != nil {
					return nil, fmt.Errorf("get user %d: %w", uid, err)
				}
				users[uid] = u
			}
			if u != nil {
				r.Username = u.Username
				r.DisplayName = u.DisplayName
			}
		}
		if a.Details != nil {
			r.TotalPossible = a.Details.TotalPossible
			r.Percent = a.Details.Percent
			r.Pass = r.Percent >= a.Details.PassThreshold
			if a.Details.Details != nil {
				r.Questions = a.Details.Details
			}
		}
		results = append(results, r)
	}

	return &model.ResultsExport{
		ExamID:      exam.ID,
		Title:       exam.Title,
		ExportedAt:  time.Now().UTC(),
		NumAttempts: len(results),
		Results:     results,
	}, nil
}
