package exam

import (
	"context"
	"log/slog"

	"github.com/pavelanni/lernbot/internal/evaluation"
	"github.com/pavelanni/lernbot/internal/model"
)

// QuestionSource samples stored questions.
type QuestionSource interface {
	GetRandomExamQuestions(ctx context.Context, level model.Level, examType model.ExamType, count int) ([]model.Question, error)
}

// ItemGenerator produces exam item JSON already checked against the item
// schema of its exam type.
type ItemGenerator interface {
	GenerateExamItem(ctx context.Context, level model.Level, examType model.ExamType, topic string) (string, error)
}

// Selector assembles the questions of an exam, topping up stored
// questions with generated ones.
type Selector struct {
	source    QuestionSource
	generator ItemGenerator
}

// NewSelector creates a Selector. generator may be nil to disable the
// generation fallback.
func NewSelector(source QuestionSource, generator ItemGenerator) *Selector {
	return &Selector{source: source, generator: generator}
}

// Questions returns up to examType.QuestionCount() questions. The result
// may be shorter, or empty, when the store and the generator both fall
// short.
func (s *Selector) Questions(ctx context.Context, level model.Level, examType model.ExamType) []model.Question {
	count := examType.QuestionCount()

	questions, err := s.source.GetRandomExamQuestions(ctx, level, examType, count)
	if err != nil {
		slog.Error("sample exam questions", "level", level, "exam_type", examType, "error", err)
		questions = nil
	}

	if missing := count - len(questions); missing > 0 && s.generator != nil {
		slog.Info("generating exam questions", "level", level, "exam_type", examType, "count", missing)
		for range missing {
			q, err := s.generate(ctx, level, examType)
			if err != nil {
				slog.Warn("skip generated question", "exam_type", examType, "error", err)
				continue
			}
			questions = append(questions, *q)
		}
	}

	if len(questions) > count {
		questions = questions[:count]
	}
	return questions
}

func (s *Selector) generate(ctx context.Context, level model.Level, examType model.ExamType) (*model.Question, error) {
	raw, err := s.generator.GenerateExamItem(ctx, level, examType, "")
	if err != nil {
		return nil, err
	}
	return evaluation.ParseExamItem(raw, level, examType)
}
