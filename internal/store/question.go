package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/pavelanni/lernbot/internal/model"
)

// difficultyBand is one stratum of the exam question sample. Limit rows
// are fetched and at most Keep of them are used, both per ten questions.
type difficultyBand struct {
	Min, Max    int
	Limit, Keep int
}

var difficultyBands = []difficultyBand{
	{Min: 1, Max: 3, Limit: 3, Keep: 2},
	{Min: 4, Max: 7, Limit: 5, Keep: 6},
	{Min: 8, Max: 10, Limit: 2, Keep: 2},
}

// scaled returns n per ten questions scaled to count, rounded up, and at
// least 1.
func scaled(n, count int) int {
	return max(1, (n*count+9)/10)
}

const questionColumns = `id, level, exam_type, question_text, question_data, correct_answer, difficulty`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var data string
	if err := row.Scan(&q.ID, &q.Level, &q.ExamType, &q.Text, &data, &q.CorrectAnswer, &q.Difficulty); err != nil {
		return q, err
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &q.Data); err != nil {
			return q, fmt.Errorf("decode question_data of %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// InsertQuestion stores a question and returns its ID. An empty ID is
// replaced by a new UUID.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Difficulty == 0 {
		q.Difficulty = 5
	}
	if q.Text == "" {
		q.Text = q.Data.QuestionText
	}
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = q.Data.CorrectAnswer
	}
	data, err := encodeJSON(q.Data, "{}")
	if err != nil {
		return "", fmt.Errorf("encode question_data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_questions (id, level, exam_type, question_text, question_data, correct_answer, difficulty, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Level, q.ExamType, q.Text, data, q.CorrectAnswer, q.Difficulty, s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert question: %w", err)
	}
	return q.ID, nil
}

// GetExamQuestions returns up to limit active questions of a level and type
// within a difficulty range, in random order.
func (s *Store) GetExamQuestions(ctx context.Context, level model.Level, examType model.ExamType, minDifficulty, maxDifficulty, limit int) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM exam_questions
		 WHERE level = ? AND exam_type = ? AND is_active = 1 AND difficulty BETWEEN ? AND ?
		 ORDER BY RANDOM() LIMIT ?`,
		level, examType, minDifficulty, maxDifficulty, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query exam questions: %w", err)
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetRandomExamQuestions draws a difficulty-stratified sample of up to count
// questions, shuffled. Fewer are returned when the bank is thin.
func (s *Store) GetRandomExamQuestions(ctx context.Context, level model.Level, examType model.ExamType, count int) ([]model.Question, error) {
	return Stratified(count, func(minDifficulty, maxDifficulty, limit int) ([]model.Question, error) {
		return s.GetExamQuestions(ctx, level, examType, minDifficulty, maxDifficulty, limit)
	})
}

// BandFetcher returns up to limit random questions within a difficulty range.
type BandFetcher func(minDifficulty, maxDifficulty, limit int) ([]model.Question, error)

// Stratified samples count questions across the easy, mid and hard
// difficulty bands using fetch, then shuffles the sample.
func Stratified(count int, fetch BandFetcher) ([]model.Question, error) {
	if count <= 0 {
		return nil, nil
	}
	var sample []model.Question
	for _, b := range difficultyBands {
		qs, err := fetch(b.Min, b.Max, scaled(b.Limit, count))
		if err != nil {
			return nil, err
		}
		if keep := scaled(b.Keep, count); len(qs) > keep {
			qs = qs[:keep]
		}
		sample = append(sample, qs...)
	}
	rand.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	if len(sample) > count {
		sample = sample[:count]
	}
	return sample, nil
}

// SetQuestionActive enables or retires a question.
func (s *Store) SetQuestionActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE exam_questions SET is_active = ? WHERE id = ?`, active, id)
	return err
}

// QuestionCount returns the number of stored questions.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_questions`).Scan(&count)
	return count, err
}

// FromImport validates an imported question and fills in its defaults.
func FromImport(it model.QuestionImport) (model.Question, error) {
	if !it.Level.IsValid() || !it.ExamType.IsValid() {
		return model.Question{}, fmt.Errorf("invalid level %q or exam type %q", it.Level, it.ExamType)
	}
	q := model.Question{
		ID:            uuid.NewString(),
		Level:         it.Level,
		ExamType:      it.ExamType,
		Text:          it.Text,
		Data:          it.Data,
		CorrectAnswer: it.CorrectAnswer,
		Difficulty:    it.Difficulty,
	}
	if q.Text == "" {
		q.Text = it.Data.QuestionText
	}
	if q.Text == "" {
		return model.Question{}, errors.New("missing question_text")
	}
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = it.Data.CorrectAnswer
	}
	if q.Difficulty == 0 {
		q.Difficulty = 5
	}
	return q, nil
}

// ImportQuestions stores a batch of imported questions in one transaction.
func (s *Store) ImportQuestions(ctx context.Context, items []model.QuestionImport) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := s.now()
	for i, it := range items {
		q, err := FromImport(it)
		if err != nil {
			return 0, fmt.Errorf("question %d: %w", i, err)
		}
		data, err := encodeJSON(q.Data, "{}")
		if err != nil {
			return 0, fmt.Errorf("question %d: encode question_data: %w", i, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exam_questions (id, level, exam_type, question_text, question_data, correct_answer, difficulty, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.Level, q.ExamType, q.Text, data, q.CorrectAnswer, q.Difficulty, now,
		)
		if err != nil {
			return 0, fmt.Errorf("question %d: %w", i, err)
		}
	}
	return len(items), tx.Commit()
}
