package keyboard

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		in   string
		want Payload
	}{
		{"menu_main", Payload{Action: ActionMenu, Arg: "main"}},
		{"menu_help", Payload{Action: ActionMenu, Arg: "help"}},
		{"learn_grammar", Payload{Action: ActionLearn, Arg: "grammar"}},
		{"exam_lesen", Payload{Action: ActionExam, Arg: "lesen"}},
		{"exam_full", Payload{Action: ActionExam, Arg: "full"}},
		{"answer_B", Payload{Action: ActionAnswer, Arg: "B"}},
		{"next_question", Payload{Action: ActionNextQuestion}},
		{"submit", Payload{Action: ActionSubmit}},
		{"cancel", Payload{Action: ActionCancel}},
		{"end_conversation", Payload{Action: ActionEndConversation}},
		{"level_A2", Payload{Action: ActionLevel, Arg: "A2"}},
		{"lang_amharic", Payload{Action: ActionLang, Arg: "amharic"}},
		{"settings_level", Payload{Action: ActionSettingsLevel}},
		{"settings_lang", Payload{Action: ActionSettingsLang}},
		{"settings_subscription", Payload{Action: ActionSettingsSubscription}},
		{"practice_weak", Payload{Action: ActionPracticeWeak}},
		{"view_history", Payload{Action: ActionViewHistory}},
		{"view_results", Payload{Action: ActionViewResults}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePayload(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParsePayload_Unknown(t *testing.T) {
	for _, in := range []string{"", "bogus", "answer_", "menu_"} {
		_, err := ParsePayload(in)
		assert.ErrorIs(t, err, ErrUnknownPayload, in)
	}
}

func TestLayoutsRoundTrip(t *testing.T) {
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
	layouts := []Layout{
		MainMenu(ctx),
		LearnMenu(ctx),
		ExamMenu(ctx),
		LevelSelection(ctx, model.LevelA1),
		LanguageSelection(ctx, model.LangGerman),
		SettingsMenu(ctx),
		MCQOptions([]string{"A) eins", "B) zwei"}),
		SubmitCancel(ctx),
		NextQuestion(ctx),
		ViewResults(ctx),
		ProgressActions(ctx),
		BackToMenu(ctx),
		EndConversation(ctx),
	}
	for _, l := range layouts {
		for _, r := range l {
			for _, b := range r {
				_, err := ParsePayload(b.Payload)
				assert.NoError(t, err, b.Payload)
				assert.NotEmpty(t, b.Text)
			}
		}
	}
}

func TestMCQOptions(t *testing.T) {
	l := MCQOptions([]string{"A) Hund", "Katze"})
	require.Len(t, l, 2)
	assert.Equal(t, Button{Text: "A) Hund", Payload: "answer_A"}, l[0][0])
	assert.Equal(t, Button{Text: "B) Katze", Payload: "answer_B"}, l[1][0])
}

func TestLevelSelection_MarksCurrent(t *testing.T) {
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
	l := LevelSelection(ctx, model.LevelA2)
	require.Len(t, l, len(model.Levels)+1)
	assert.Equal(t, "A1", l[0][0].Text)
	assert.Equal(t, "A2 (current)", l[1][0].Text)
}
