package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/lernbot/internal/exam"
	"github.com/pavelanni/lernbot/internal/model"
)

// ExportAttempts builds export-ready learner results from all attempts.
func (s *Store) ExportAttempts(ctx context.Context) ([]model.LearnerResult, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	attempts, err := s.ListAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return BuildExport(users, attempts), nil
}

// BuildExport groups attempts, oldest first, by learner. Learners without
// attempts are left out.
func BuildExport(users []model.User, attempts []model.ExamAttempt) []model.LearnerResult {
	byUser := make(map[int64][]model.ExamAttempt)
	for _, a := range attempts {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	var results []model.LearnerResult
	for _, u := range users {
		list := byUser[u.ID]
		if len(list) == 0 {
			continue
		}
		lr := model.LearnerResult{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName(),
			Level:       u.Level,
		}
		var sum float64
		var scored int
		for i, a := range list {
			ar := model.AttemptResult{
				AttemptNumber: i + 1,
				ExamType:      a.ExamType,
				Level:         a.Level,
				Score:         a.Score,
				Completed:     a.Completed,
				StartedAt:     a.StartedAt,
				CompletedAt:   a.CompletedAt,
				Answers:       a.Answers,
			}
			if a.Score != nil {
				ar.Passed = a.Completed && *a.Score >= exam.PassThreshold
				if a.Completed {
					sum += *a.Score
					scored++
				}
			}
			lr.Attempts = append(lr.Attempts, ar)
		}
		if scored > 0 {
			lr.AverageScore = sum / float64(scored)
		}
		results = append(results, lr)
	}
	return results
}
