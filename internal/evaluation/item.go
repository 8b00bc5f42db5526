package evaluation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pavelanni/lernbot/internal/model"
)

// generatedDifficulty is the neutral difficulty assigned to synthesized items.
const generatedDifficulty = 5

// ParseExamItem turns generator output into a question tagged as generated.
// Unlike evaluations there is no default: a failed item is simply skipped.
func ParseExamItem(raw string, level model.Level, examType model.ExamType) (*model.Question, error) {
	var data model.QuestionData
	if err := Decode(raw, &data); err != nil {
		return nil, err
	}
	if data.QuestionText == "" {
		return nil, fmt.Errorf("generated %s item has no question text", examType)
	}
	return &model.Question{
		ID:            uuid.NewString(),
		Level:         level,
		ExamType:      examType,
		Text:          data.QuestionText,
		Data:          data,
		CorrectAnswer: data.CorrectAnswer,
		Difficulty:    generatedDifficulty,
		Generated:     true,
	}, nil
}
