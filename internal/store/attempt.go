package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/lernbot/internal/model"
)

const attemptColumns = `id, user_id, exam_type, level, answers, score, is_completed, started_at, completed_at`

func scanAttempt(row interface{ Scan(...any) error }) (model.ExamAttempt, error) {
	var a model.ExamAttempt
	var answers string
	err := row.Scan(&a.ID, &a.UserID, &a.ExamType, &a.Level, &answers, &a.Score, &a.Completed, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return a, fmt.Errorf("decode answers of attempt %s: %w", a.ID, err)
	}
	if a.Answers == nil {
		a.Answers = []model.Answer{}
	}
	return a, nil
}

// CreateExamAttempt starts an attempt with no answers.
func (s *Store) CreateExamAttempt(ctx context.Context, userID int64, examType model.ExamType, level model.Level) (*model.ExamAttempt, error) {
	a := model.ExamAttempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExamType:  examType,
		Level:     level,
		Answers:   []model.Answer{},
		StartedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_attempts (id, user_id, exam_type, level, answers, is_completed, started_at)
		 VALUES (?, ?, ?, ?, '[]', 0, ?)`,
		a.ID, a.UserID, a.ExamType, a.Level, a.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert exam attempt: %w", err)
	}
	return &a, nil
}

// UpdateExamAttempt replaces the answers of an attempt. A nil score leaves
// the stored score unchanged; completing stamps completed_at.
func (s *Store) UpdateExamAttempt(ctx context.Context, id string, answers []model.Answer, score *float64, completed bool) error {
	encoded, err := encodeJSON(answers, "[]")
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	query := `UPDATE exam_attempts SET answers = ?, is_completed = ?`
	args := []any{encoded, completed}
	if completed {
		query += `, completed_at = ?`
		args = append(args, s.now())
	}
	if score != nil {
		query += `, score = ?`
		args = append(args, *score)
	}
	query += ` WHERE id = ?`
	args = append(args, id)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update exam attempt %s: %w", id, err)
	}
	return nil
}

// GetExamAttempts returns up to limit completed attempts of a user, newest
// first. An empty examType matches all types.
func (s *Store) GetExamAttempts(ctx context.Context, userID int64, examType string, limit int) ([]model.ExamAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts WHERE user_id = ? AND is_completed = 1`
	args := []any{userID}
	if examType != "" {
		query += ` AND exam_type = ?`
		args = append(args, examType)
	}
	query += ` ORDER BY completed_at DESC LIMIT ?`
	args = append(args, limit)
	return s.queryAttempts(ctx, query, args...)
}

// ListAttempts returns every attempt, oldest first.
func (s *Store) ListAttempts(ctx context.Context) ([]model.ExamAttempt, error) {
	return s.queryAttempts(ctx, `SELECT `+attemptColumns+` FROM exam_attempts ORDER BY started_at, rowid`)
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]model.ExamAttempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exam attempts: %w", err)
	}
	defer rows.Close()
	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
