package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/lernbot/internal/model"
)

func TestUserRowRoundTrip(t *testing.T) {
	expiry := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	u := model.User{
		ID:                 42,
		Username:           "selam",
		FirstName:          "Selam",
		Level:              model.LevelA2,
		PreferredLang:      model.LangGerman,
		SubscriptionExpiry: &expiry,
		CreatedAt:          expiry.Add(-time.Hour),
	}
	assert.Equal(t, u, toUserRow(u).toModel())
}

func TestToQuestionRowDefaults(t *testing.T) {
	now := time.Now()
	row := toQuestionRow(model.Question{
		Level:    model.LevelA1,
		ExamType: model.ExamLesen,
		Data:     model.QuestionData{QuestionText: "Wo ist der Bahnhof?", CorrectAnswer: "C"},
	}, now)

	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "Wo ist der Bahnhof?", row.QuestionText)
	assert.Equal(t, "C", row.CorrectAnswer)
	assert.Equal(t, 5, row.Difficulty)
	assert.True(t, row.IsActive)

	q := row.toModel()
	assert.Equal(t, model.ExamLesen, q.ExamType)
	assert.Equal(t, "Wo ist der Bahnhof?", q.Prompt())
}

func TestAttemptsToModel(t *testing.T) {
	score := 80.0
	rows := []attemptRow{
		{ID: "a1", UserID: 1, ExamType: "lesen", Level: "A1", Score: &score, IsCompleted: true},
		{ID: "a2", UserID: 1, ExamType: "horen", Level: "A1"},
	}
	attempts := attemptsToModel(rows)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].Completed)
	assert.Equal(t, 80.0, *attempts[0].Score)
	assert.NotNil(t, attempts[1].Answers)
	assert.Empty(t, attempts[1].Answers)
}

func TestToProgressRowNormalizes(t *testing.T) {
	local := time.FixedZone("EAT", 3*60*60)
	row := toProgressRow(model.ProgressEntry{
		UserID:       7,
		Skill:        "grammar",
		ActivityType: model.ActivityTutoring,
		Score:        70,
		CompletedAt:  time.Date(2026, 10, 1, 15, 0, 0, 0, local),
	})
	assert.NotNil(t, row.WeakAreas)
	assert.Equal(t, time.UTC, row.CompletedAt.Location())
	assert.Equal(t, 12, row.CompletedAt.Hour())
	assert.Equal(t, model.ActivityTutoring, row.toModel().ActivityType)
}
