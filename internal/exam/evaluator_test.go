package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/lernbot/internal/model"
)

func TestCheckAnswer_LetterForms(t *testing.T) {
	q := model.Question{CorrectAnswer: "B)"}
	for _, in := range []string{"b", "B", "B)", " b) "} {
		ok, explanation := CheckAnswer(q, in)
		assert.True(t, ok, "answer %q", in)
		assert.Equal(t, "Richtig! (Correct!)", explanation)
	}
	for _, in := range []string{"A", "c)", "", "BB"} {
		ok, explanation := CheckAnswer(q, in)
		assert.False(t, ok, "answer %q", in)
		assert.Equal(t, "Die richtige Antwort ist B. (The correct answer is B.)", explanation)
	}
}

func TestCheckAnswer_AuthoredExplanation(t *testing.T) {
	q := model.Question{CorrectAnswer: "A", Data: model.QuestionData{Explanation: "Hund means dog."}}
	_, explanation := CheckAnswer(q, "C")
	assert.Equal(t, "Hund means dog.", explanation)
}

func TestCalculateScore_Empty(t *testing.T) {
	r := CalculateScore(nil, model.ExamLesen)
	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, 0, r.TotalQuestions)
	assert.False(t, r.Passed)
	assert.NotNil(t, r.WeakAreas)
	assert.Empty(t, r.WeakAreas)
}

func TestCalculateScore_SevenOfTen(t *testing.T) {
	answers := make([]model.Answer, 10)
	for i := range answers {
		answers[i] = model.Answer{IsCorrect: i < 7, Topic: "dative"}
	}
	r := CalculateScore(answers, model.ExamVokabular)
	assert.Equal(t, 70.0, r.Score)
	assert.Equal(t, 7, r.CorrectAnswers)
	assert.True(t, r.Passed)
	assert.Equal(t, []string{"dative"}, r.WeakAreas)
}

func TestCalculateScore_Rounding(t *testing.T) {
	answers := []model.Answer{{IsCorrect: true}, {IsCorrect: false}, {IsCorrect: false}}
	r := CalculateScore(answers, model.ExamHoren)
	assert.Equal(t, 33.3, r.Score)
	assert.False(t, r.Passed)
	assert.Equal(t, []string{"horen"}, r.WeakAreas)
}

func TestCalculateScore_WeakAreasCappedAndDeduplicated(t *testing.T) {
	topics := []string{"b", "a", "b", "c", "d", "", "e", "f", "a"}
	var answers []model.Answer
	for _, topic := range topics {
		answers = append(answers, model.Answer{Topic: topic})
	}
	r := CalculateScore(answers, model.ExamLesen)
	assert.Equal(t, []string{"b", "a", "c", "d", "lesen"}, r.WeakAreas)
}

func TestCalculateWeightedScore(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   float64
	}{
		{"empty", map[string]float64{}, 0},
		{"lesen and schreiben", map[string]float64{"lesen": 80, "schreiben": 60}, 71.1},
		{"single section", map[string]float64{"vokabular": 55}, 55},
		{"unknown section", map[string]float64{"grammar": 50, "sprechen": 100}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateWeightedScore(tt.scores))
		})
	}
}

func TestRecommendLevel(t *testing.T) {
	tests := []struct {
		current model.Level
		avg     float64
		want    model.Level
		message string
	}{
		{model.LevelA1, 90, model.LevelA2, "Excellent! You're ready for A2. Consider leveling up!"},
		{model.LevelB1, 90, model.LevelB1, "Continue practicing at B1 level."},
		{model.LevelA2, 30, model.LevelA1, "You might benefit from reviewing A1 material first."},
		{model.LevelA1, 30, model.LevelA1, "Continue practicing at A1 level."},
		{model.LevelA2, 60, model.LevelA2, "Continue practicing at A2 level."},
		{model.Level("C2"), 85, model.LevelA2, "Excellent! You're ready for A2. Consider leveling up!"},
	}
	for _, tt := range tests {
		got, msg := RecommendLevel(tt.current, tt.avg)
		assert.Equal(t, tt.want, got, "%s at %.0f", tt.current, tt.avg)
		assert.Equal(t, tt.message, msg)
	}
}
