// Package tutor runs free-form tutoring conversations with the oracle.
package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/llm"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/speech"
)

// State is a state of the tutoring flow.
type State string

const (
	StateSelectingSkill State = "selecting_skill"
	StateInConversation State = "in_conversation"
	StateEnded          State = "ended"
)

const (
	// historyWindow is how many recent turns are sent to the oracle.
	historyWindow = 10
	// minScoredTurns is the shortest conversation that earns a progress entry.
	minScoredTurns = 4
)

// Scratch is the per-user state of a tutoring session.
type Scratch struct {
	State     State
	UserID    int64
	SessionID string
	Skill     model.Skill
	Level     model.Level
	Lang      model.Lang
	WeakAreas []string
	History   []llm.Message
}

// NewScratch returns a scratch waiting for a skill pick.
func NewScratch(userID int64) *Scratch {
	return &Scratch{State: StateSelectingSkill, UserID: userID}
}

// Outcome is the reply produced by one tutoring event.
type Outcome struct {
	Text    string
	Buttons keyboard.Layout
	Ignored bool
}

// Store is the persistence the tutor needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserStatistics(ctx context.Context, userID int64) (*model.Statistics, error)
	SaveConversation(ctx context.Context, turn model.ConversationTurn) error
	SaveProgress(ctx context.Context, entry model.ProgressEntry) error
}

// Chatter produces tutor replies.
type Chatter interface {
	Chat(ctx context.Context, in llm.ChatInput) (string, error)
}

// Tutor drives tutoring sessions. Per-user state lives in Scratch.
type Tutor struct {
	store       Store
	chat        Chatter
	transcriber speech.Transcriber
	now         func() time.Time
}

// New creates a tutor. A nil transcriber disables voice messages.
func New(store Store, chat Chatter, transcriber speech.Transcriber) *Tutor {
	if transcriber == nil {
		transcriber = speech.Disabled{}
	}
	return &Tutor{store: store, chat: chat, transcriber: transcriber, now: time.Now}
}

// Menu returns the skill selection prompt.
func (t *Tutor) Menu(ctx context.Context) Outcome {
	return Outcome{Text: i18n.T(ctx, "LearnMenuPrompt"), Buttons: keyboard.LearnMenu(ctx)}
}

// Start begins a conversation focused on skill.
func (t *Tutor) Start(ctx context.Context, sc *Scratch, skill model.Skill) Outcome {
	if sc.State != StateSelectingSkill {
		return Outcome{Ignored: true}
	}
	if !skill.IsValid() {
		skill = model.SkillConversation
	}

	sc.Level = model.LevelA1
	sc.Lang = model.LangEnglish
	user, err := t.store.GetUser(ctx, sc.UserID)
	if err != nil {
		slog.Error("load user for tutoring", "user_id", sc.UserID, "error", err)
	} else if user != nil {
		sc.Level = user.Level
		sc.Lang = user.PreferredLang
	}

	sc.WeakAreas = nil
	stats, err := t.store.GetUserStatistics(ctx, sc.UserID)
	if err != nil {
		slog.Error("load statistics for tutoring", "user_id", sc.UserID, "error", err)
	} else if stats != nil {
		sc.WeakAreas = stats.WeakAreas
	}

	sc.SessionID = uuid.NewString()
	sc.Skill = skill
	sc.History = nil
	sc.State = StateInConversation
	slog.Info("tutoring session started", "user_id", sc.UserID, "session_id", sc.SessionID, "skill", skill)

	voiceNote := i18n.T(ctx, "VoiceNoteType")
	if t.transcriber.Available() {
		voiceNote = i18n.T(ctx, "VoiceNoteAvailable")
	}
	intro := i18n.Td(ctx, "SkillIntro_"+string(skill), map[string]any{
		"Level":     sc.Level,
		"VoiceNote": voiceNote,
	})
	return Outcome{
		Text:    intro + "\n\n" + i18n.T(ctx, "TutorCancelHint"),
		Buttons: keyboard.EndConversation(ctx),
	}
}

// Say handles a typed learner message.
func (t *Tutor) Say(ctx context.Context, sc *Scratch, text string) Outcome {
	if sc.State != StateInConversation {
		return Outcome{Ignored: true}
	}
	return Outcome{Text: t.turn(ctx, sc, text), Buttons: keyboard.EndConversation(ctx)}
}

// Voice handles a voice message. Without a working transcription the
// learner is asked to type and the conversation is unchanged.
func (t *Tutor) Voice(ctx context.Context, sc *Scratch, audio io.Reader, filename string) Outcome {
	if sc.State != StateInConversation {
		return Outcome{Ignored: true}
	}
	if !t.transcriber.Available() {
		return Outcome{Text: i18n.T(ctx, "VoiceUnavailableType"), Buttons: keyboard.EndConversation(ctx)}
	}
	text, err := t.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		slog.Warn("transcribe tutoring message", "user_id", sc.UserID, "error", err)
		return Outcome{Text: i18n.T(ctx, "TranscriptionFailed"), Buttons: keyboard.EndConversation(ctx)}
	}
	heard := i18n.Td(ctx, "IHeard", map[string]any{"Text": text})
	return Outcome{Text: heard + "\n\n" + t.turn(ctx, sc, text), Buttons: keyboard.EndConversation(ctx)}
}

func (t *Tutor) turn(ctx context.Context, sc *Scratch, text string) string {
	sc.History = append(sc.History, llm.Message{Role: llm.RoleUser, Content: text})

	window := sc.History
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	skill := sc.Skill
	if skill == model.SkillConversation {
		skill = ""
	}

	reply, err := t.chat.Chat(ctx, llm.ChatInput{
		Level:     sc.Level,
		Lang:      sc.Lang,
		Skill:     skill,
		WeakAreas: sc.WeakAreas,
		History:   window,
	})
	if err != nil {
		slog.Error("tutor chat", "user_id", sc.UserID, "session_id", sc.SessionID, "error", err)
		reply = apology(ctx, err)
	}
	sc.History = append(sc.History, llm.Message{Role: llm.RoleAssistant, Content: reply})

	t.save(ctx, sc, model.RoleUser, text)
	t.save(ctx, sc, model.RoleAssistant, reply)
	return reply
}

func (t *Tutor) save(ctx context.Context, sc *Scratch, role model.Role, content string) {
	err := t.store.SaveConversation(ctx, model.ConversationTurn{
		UserID:    sc.UserID,
		SessionID: sc.SessionID,
		Role:      role,
		Content:   content,
		Timestamp: t.now(),
	})
	if err != nil {
		slog.Error("save conversation turn", "user_id", sc.UserID, "session_id", sc.SessionID, "error", err)
	}
}

// apology picks the canned reply shown instead of a failed oracle answer.
func apology(ctx context.Context, err error) string {
	var rateLimit *llm.ErrRateLimit
	var unavailable *llm.ErrProviderUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return i18n.T(ctx, "ApologyTimeout")
	case errors.As(err, &rateLimit), errors.As(err, &unavailable):
		return i18n.T(ctx, "ApologyTechnical")
	default:
		return i18n.T(ctx, "ApologyGeneric")
	}
}

// End closes the conversation. Conversations of at least four turns earn a
// progress entry scored by length.
func (t *Tutor) End(ctx context.Context, sc *Scratch) Outcome {
	if sc.State != StateInConversation {
		return Outcome{Ignored: true}
	}
	n := len(sc.History)
	if n >= minScoredTurns {
		score := float64(min(100, 50+5*n))
		err := t.store.SaveProgress(ctx, model.ProgressEntry{
			UserID:       sc.UserID,
			Skill:        string(sc.Skill),
			ActivityType: model.ActivityTutoring,
			Score:        score,
			WeakAreas:    []string{},
			CompletedAt:  t.now(),
		})
		if err != nil {
			slog.Error("save tutoring progress", "user_id", sc.UserID, "error", err)
		}
	}
	slog.Info("tutoring session ended", "user_id", sc.UserID, "session_id", sc.SessionID, "messages", n)
	sc.State = StateEnded
	return Outcome{
		Text:    i18n.Td(ctx, "TutorEnded", map[string]any{"Count": n}),
		Buttons: keyboard.MainMenu(ctx),
	}
}

// Cancel discards the conversation without scoring.
func (t *Tutor) Cancel(ctx context.Context, sc *Scratch) Outcome {
	sc.State = StateEnded
	return Outcome{Text: i18n.T(ctx, "TutorCancelled"), Buttons: keyboard.MainMenu(ctx)}
}
