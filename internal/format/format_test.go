package format

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func enCtx() context.Context {
	return i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[----------]", Bar(0))
	assert.Equal(t, "[#######---]", Bar(71.1))
	assert.Equal(t, "[##########]", Bar(100))
	assert.Equal(t, "[##########]", Bar(140))
}

func TestExamQuestion_WithPassage(t *testing.T) {
	q := model.Question{Text: "Wo wohnt Anna?", Data: model.QuestionData{Passage: "Anna wohnt in Berlin."}}
	got := ExamQuestion(enCtx(), 2, 5, q)
	assert.Contains(t, got, "2/5")
	assert.Contains(t, got, "Anna wohnt in Berlin.")
	assert.Contains(t, got, "Wo wohnt Anna?")
}

func TestExamResults(t *testing.T) {
	got := ExamResults(enCtx(), model.ExamLesen, model.ScoreResult{
		Score: 70, TotalQuestions: 10, CorrectAnswers: 7, Passed: true, WeakAreas: []string{"dativ"},
	})
	assert.Contains(t, got, "LESEN")
	assert.Contains(t, got, "70.0%")
	assert.Contains(t, got, "7/10")
	assert.Contains(t, got, "- dativ")
}

func TestWritingEvaluation_Degraded(t *testing.T) {
	e := &model.EvaluationResult{
		Scores:      map[string]float64{model.ScoreGrammar: 0},
		Strengths:   []string{"Unable to evaluate at this time"},
		Suggestions: []string{"Please try again later"},
	}
	got := WritingEvaluation(enCtx(), e)
	assert.Contains(t, got, "Unable to evaluate at this time")
	assert.Contains(t, got, "Please try again later")
}

func TestProgressSummary(t *testing.T) {
	stats := model.Statistics{
		TotalActivities: 3,
		AverageScore:    80,
		SkillScores:     map[string]float64{"lesen": 90, "horen": 70},
		WeakAreas:       []string{"perfekt"},
	}
	got := ProgressSummary(enCtx(), stats, model.LevelA2, "Continue practicing at A2 level.")
	assert.Contains(t, got, "A2")
	assert.Contains(t, got, "Lesen: 90%")
	assert.Contains(t, got, "Horen: 70%")
	assert.Contains(t, got, "- perfekt")
	assert.Contains(t, got, "Continue practicing at A2 level.")
}

func TestExamHistory(t *testing.T) {
	score := 75.0
	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got := ExamHistory(enCtx(), []model.ExamAttempt{{ExamType: model.ExamHoren, Score: &score, CompletedAt: &done}})
	assert.Contains(t, got, "[+] Horen: 75% (2026-03-01)")
}

func TestSubscriptionInfo(t *testing.T) {
	exp := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, SubscriptionInfo(enCtx(), &exp, true), "04 May 2026")
	assert.NotEmpty(t, SubscriptionInfo(enCtx(), nil, false))
}
