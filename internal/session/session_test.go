package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/lernbot/internal/format"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/llm"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var bg = context.Background()

type harness struct {
	o     *Orchestrator
	store *store.Store
	llm   *llm.MockProvider
}

func newHarness(t *testing.T, responses ...llm.MockResponse) *harness {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	mock := llm.NewMockProvider(responses...)
	return &harness{
		o:     New(s, llm.New(mock, time.Minute), nil, 0),
		store: s,
		llm:   mock,
	}
}

func (h *harness) user(t *testing.T, id int64, subscriptionDays int) {
	t.Helper()
	_, err := h.store.CreateUser(bg, model.User{ID: id, FirstName: fmt.Sprintf("Learner%d", id), Level: model.LevelA1})
	require.NoError(t, err)
	if subscriptionDays > 0 {
		until := time.Now().Add(time.Duration(subscriptionDays)*24*time.Hour + time.Hour)
		require.NoError(t, h.store.GrantSubscription(bg, id, until))
	}
}

func (h *harness) seedLesen(t *testing.T) {
	t.Helper()
	for i, d := range []int{2, 5, 5, 5, 9} {
		_, err := h.store.InsertQuestion(bg, model.Question{
			Level:         model.LevelA1,
			ExamType:      model.ExamLesen,
			Text:          fmt.Sprintf("Frage %d", i+1),
			CorrectAnswer: "B",
			Difficulty:    d,
			Data: model.QuestionData{
				Options: []string{"A) nein", "B) ja", "C) vielleicht"},
				Topic:   fmt.Sprintf("topic%d", i+1),
			},
		})
		require.NoError(t, err)
	}
}

func (h *harness) press(id int64, payload string) Reply {
	return h.o.Handle(bg, Event{UserID: id, Kind: KindButton, Payload: payload})
}

func (h *harness) say(id int64, text string) Reply {
	return h.o.Handle(bg, Event{UserID: id, Kind: KindText, Text: text})
}

func (h *harness) command(id int64, cmd string) Reply {
	return h.o.Handle(bg, Event{UserID: id, Kind: KindCommand, Command: cmd})
}

func payloads(r Reply) []string {
	var out []string
	for _, row := range r.Buttons {
		for _, b := range row {
			out = append(out, b.Payload)
		}
	}
	return out
}

// runLesen takes a full lesen exam answering every question with letter.
func (h *harness) runLesen(t *testing.T, id int64, letter string) Reply {
	t.Helper()
	h.press(id, "menu_exam")
	r := h.press(id, "exam_lesen")
	require.Contains(t, r.Text, "1/5")
	for i := range 5 {
		r = h.press(id, "answer_"+letter)
		require.False(t, r.Empty(), "answer %d ignored", i+1)
		if i < 4 {
			r = h.press(id, "next_question")
			require.Contains(t, r.Text, fmt.Sprintf("%d/5", i+2))
		}
	}
	return r
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Pong!", h.command(1, "/ping").Text)
	assert.Equal(t, "Pong!", h.command(1, "ping@lernbot").Text)
}

func TestRegistration(t *testing.T) {
	h := newHarness(t)
	ev := Event{UserID: 9, Kind: KindCommand, Command: "/start", Profile: Profile{Username: "hana", FirstName: "Hana"}}

	r := h.o.Handle(bg, ev)
	assert.Contains(t, r.Text, "Hana")
	assert.Contains(t, payloads(r), "level_A1")
	assert.Equal(t, FlowRegistration, h.o.Flow(9))

	r = h.press(9, "lang_english")
	assert.True(t, r.Empty(), "language before level must be ignored")

	r = h.press(9, "level_A2")
	assert.Contains(t, payloads(r), "lang_german")

	r = h.press(9, "lang_german")
	assert.False(t, r.Empty())
	assert.Equal(t, FlowNone, h.o.Flow(9))

	u, err := h.store.GetUser(bg, 9)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.LevelA2, u.Level)
	assert.Equal(t, model.LangGerman, u.PreferredLang)
	assert.Equal(t, "Hana", u.FirstName)
	assert.Nil(t, u.SubscriptionExpiry)
}

func TestStartKnownUser(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.user(t, 2, 0)

	r := h.command(1, "start")
	assert.Contains(t, r.Text, "Learner1")
	assert.Contains(t, payloads(r), "menu_learn")

	r = h.command(2, "start")
	assert.Contains(t, r.Text, "Learner2")
	assert.Equal(t, []string{"menu_main"}, payloads(r))
}

func TestGateDeniesWithoutSubscription(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0)

	deny := i18n.T(bg, "DenyNoSubscription")
	for _, payload := range []string{"menu_learn", "menu_exam", "learn_grammar", "exam_lesen", "menu_progress"} {
		r := h.press(1, payload)
		assert.Equal(t, deny, r.Text, payload)
	}
	assert.Equal(t, deny, h.say(1, "Hallo").Text)
	assert.Equal(t, deny, h.command(1, "menu").Text)
	assert.Equal(t, FlowNone, h.o.Flow(1))
}

func TestGateDeniesExpired(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0)
	require.NoError(t, h.store.GrantSubscription(bg, 1, time.Now().Add(-48*time.Hour)))

	r := h.press(1, "menu_exam")
	assert.Contains(t, r.Text, "expired")
}

func TestExemptEntries(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 0)

	assert.Equal(t, i18n.T(bg, "HelpText"), h.press(1, "menu_help").Text)
	assert.Equal(t, i18n.T(bg, "HelpText"), h.command(1, "help").Text)
	assert.Equal(t, i18n.T(bg, "MainMenuPrompt"), h.press(1, "menu_main").Text)
	assert.Equal(t, i18n.T(bg, "OperationCancelled"), h.press(1, "cancel").Text)
}

func TestExpiryWarningAppended(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 2)
	h.user(t, 2, 5)
	h.user(t, 3, 30)

	r := h.press(1, "menu_exam")
	assert.True(t, strings.HasSuffix(r.Text, "\nYour subscription expires in 2 days. Please renew soon."), r.Text)

	r = h.press(2, "menu_exam")
	assert.True(t, strings.HasSuffix(r.Text, "\nReminder: Subscription expires in 5 days."), r.Text)

	r = h.press(3, "menu_exam")
	assert.Equal(t, i18n.T(bg, "ExamMenuPrompt"), r.Text)
}

func TestObjectiveExam(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.seedLesen(t)

	r := h.runLesen(t, 1, "B")
	assert.Contains(t, r.Text, "100.0%")
	assert.Equal(t, FlowNone, h.o.Flow(1))

	attempts, err := h.store.GetExamAttempts(bg, 1, "", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].Score)
	assert.Equal(t, 100.0, *attempts[0].Score)
	assert.Len(t, attempts[0].Answers, 5)

	progress, err := h.store.GetUserProgress(bg, 1, "lesen", 10)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, model.ActivityExam, progress[0].ActivityType)

	r = h.press(1, "view_results")
	assert.Contains(t, r.Text, "Lesen: 100%")
}

func TestFailedExamRecordsWeakAreas(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.seedLesen(t)

	h.runLesen(t, 1, "C")
	stats, err := h.store.GetUserStatistics(bg, 1)
	require.NoError(t, err)
	assert.Len(t, stats.WeakAreas, 5)

	r := h.press(1, "practice_weak")
	assert.Contains(t, r.Text, "topic1")
	assert.Contains(t, payloads(r), "learn_grammar")
}

func TestDuplicateAnswersUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.seedLesen(t)
	h.press(1, "menu_exam")
	h.press(1, "exam_lesen")

	var wg sync.WaitGroup
	replies := make([]Reply, 10)
	for i := range replies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replies[i] = h.press(1, "answer_B")
		}()
	}
	wg.Wait()

	var accepted int
	for _, r := range replies {
		if !r.Empty() {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Contains(t, h.press(1, "next_question").Text, "2/5")
}

func TestTwoUsersIsolated(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.user(t, 2, 30)
	h.seedLesen(t)

	var wg sync.WaitGroup
	for id, letter := range map[int64]string{1: "B", 2: "A"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.press(id, "exam_lesen")
			for range 5 {
				h.press(id, "answer_"+letter)
				h.press(id, "next_question")
			}
		}()
	}
	wg.Wait()

	for id, want := range map[int64]float64{1: 100, 2: 0} {
		attempts, err := h.store.GetExamAttempts(bg, id, "", 10)
		require.NoError(t, err)
		require.Len(t, attempts, 1, "user %d", id)
		assert.Equal(t, want, *attempts[0].Score, "user %d", id)
	}
}

func TestCancelExamLeavesAttemptOpen(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.seedLesen(t)
	h.press(1, "menu_exam")
	h.press(1, "exam_lesen")
	h.press(1, "answer_B")

	r := h.command(1, "cancel")
	assert.Equal(t, i18n.T(bg, "ExamCancelled"), r.Text)
	assert.Equal(t, FlowNone, h.o.Flow(1))

	attempts, err := h.store.GetExamAttempts(bg, 1, "", 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	all, err := h.store.ListAttempts(bg)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Completed)

	assert.True(t, h.press(1, "answer_B").Empty())
}

func TestTutoringSession(t *testing.T) {
	h := newHarness(t, llm.Text("Sehr gut! Was machst du gern?"), llm.Text("Toll. Und am Wochenende?"))
	h.user(t, 1, 30)

	r := h.press(1, "menu_learn")
	assert.Contains(t, payloads(r), "learn_conversation")
	assert.Equal(t, FlowTutoring, h.o.Flow(1))

	r = h.press(1, "learn_conversation")
	assert.True(t, strings.HasSuffix(r.Text, "Type /cancel to exit."), r.Text)
	assert.Equal(t, []string{"end_conversation"}, payloads(r))

	assert.Equal(t, "Sehr gut! Was machst du gern?", h.say(1, "Ich heisse Anna.").Text)
	assert.Equal(t, "Toll. Und am Wochenende?", h.say(1, "Ich lese gern.").Text)
	assert.Equal(t, 2, h.llm.CallCount())

	turns, err := h.store.GetConversationHistory(bg, 1, "", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 4)

	r = h.press(1, "end_conversation")
	assert.Contains(t, r.Text, "Messages exchanged: 4")
	assert.Equal(t, FlowNone, h.o.Flow(1))

	progress, err := h.store.GetUserProgress(bg, 1, "conversation", 10)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, 70.0, progress[0].Score)
	assert.Equal(t, model.ActivityTutoring, progress[0].ActivityType)
}

func TestTutoringOracleFailureApologizes(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.press(1, "learn_grammar")

	r := h.say(1, "Der Hund, die Katze?")
	assert.Equal(t, i18n.T(bg, "ApologyTechnical"), r.Text)
}

func TestTextOutsideFlow(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	assert.Equal(t, i18n.T(bg, "UseMenuHint"), h.say(1, "Hallo").Text)
}

func TestUnknownInputIgnored(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	assert.True(t, h.press(1, "bogus").Empty())
	assert.True(t, h.press(1, "next_question").Empty())
	assert.True(t, h.press(1, "end_conversation").Empty())
	assert.Equal(t, i18n.T(bg, "UnknownCommand"), h.command(1, "dance").Text)
}

func TestSettings(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)

	r := h.press(1, "menu_settings")
	assert.Contains(t, payloads(r), "settings_level")
	assert.True(t, h.press(1, "level_B1").Empty(), "level without settings_level is ignored")

	h.press(1, "settings_level")
	r = h.press(1, "level_B1")
	assert.Contains(t, r.Text, "B1")
	u, err := h.store.GetUser(bg, 1)
	require.NoError(t, err)
	assert.Equal(t, model.LevelB1, u.Level)

	h.press(1, "settings_lang")
	h.press(1, "lang_amharic")
	u, err = h.store.GetUser(bg, 1)
	require.NoError(t, err)
	assert.Equal(t, model.LangAmharic, u.PreferredLang)

	r = h.press(1, "settings_subscription")
	require.NotNil(t, u.SubscriptionExpiry)
	assert.Contains(t, r.Text, u.SubscriptionExpiry.Format(format.DateLayout))
}

func TestProgressRecommendation(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)

	r := h.press(1, "menu_progress")
	assert.Contains(t, r.Text, i18n.T(bg, "NoProgressYet"))
	assert.NotContains(t, r.Text, "Continue practicing")

	for _, score := range []float64{90, 95} {
		require.NoError(t, h.store.SaveProgress(bg, model.ProgressEntry{
			UserID: 1, Skill: "lesen", ActivityType: model.ActivityExam, Score: score,
		}))
	}
	r = h.press(1, "menu_progress")
	assert.Contains(t, r.Text, "Excellent! You're ready for A2. Consider leveling up!")
	assert.Contains(t, payloads(r), "practice_weak")
}

func TestEvict(t *testing.T) {
	h := newHarness(t)
	h.user(t, 1, 30)
	h.user(t, 2, 30)

	start := time.Now()
	h.o.now = func() time.Time { return start }
	h.press(1, "menu_exam")
	h.o.now = func() time.Time { return start.Add(20 * time.Minute) }
	h.press(2, "menu_learn")
	require.Equal(t, 2, h.o.Len())

	h.o.now = func() time.Time { return start.Add(31 * time.Minute) }
	assert.Equal(t, 1, h.o.Evict())
	assert.Equal(t, FlowNone, h.o.Flow(1))
	assert.Equal(t, FlowTutoring, h.o.Flow(2))

	assert.True(t, h.press(1, "exam_full").Text != "")
	assert.Equal(t, FlowExam, h.o.Flow(1))
}

func TestRunEvictorStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(bg)
	done := make(chan struct{})
	go func() {
		h.o.RunEvictor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("evictor did not stop")
	}
}
