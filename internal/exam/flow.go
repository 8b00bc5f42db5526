package exam

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/lernbot/internal/evaluation"
	"github.com/pavelanni/lernbot/internal/format"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/speech"
)

// State is a state of the exam flow.
type State string

const (
	StateSelectingExam      State = "selecting_exam"
	StateAnsweringObjective State = "answering_objective"
	StateWritingResponse    State = "writing_response"
	StateSpeakingResponse   State = "speaking_response"
	StateTerminal           State = "terminal"
)

// EventKind identifies an input to the exam flow.
type EventKind string

const (
	EventSelectExam EventKind = "select_exam"
	EventAnswer     EventKind = "answer"
	EventNext       EventKind = "next"
	EventText       EventKind = "text"
	EventVoice      EventKind = "voice"
	EventSubmit     EventKind = "submit"
	EventCancel     EventKind = "cancel"
)

// Event is one input to the exam flow. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind      EventKind
	ExamType  model.ExamType
	Letter    string
	Text      string
	Audio     io.Reader
	AudioName string
}

// Scratch is the per-user state of a running exam. Awaiting is set while
// the question at Cursor is shown and unanswered.
type Scratch struct {
	State     State
	UserID    int64
	Level     model.Level
	ExamType  model.ExamType
	AttemptID string
	Questions []model.Question
	Cursor    int
	Awaiting  bool
	Answers   []model.Answer
	Buffer    []string
	Response  string
}

// NewScratch returns a scratch in the initial state.
func NewScratch(userID int64, level model.Level) *Scratch {
	return &Scratch{State: StateSelectingExam, UserID: userID, Level: level}
}

// Outcome is the reply produced by one exam event. Ignored is set when the
// event had no transition from the current state.
type Outcome struct {
	Text    string
	Buttons keyboard.Layout
	Ignored bool
}

// Store is the persistence the exam flow needs.
type Store interface {
	QuestionSource
	CreateExamAttempt(ctx context.Context, userID int64, examType model.ExamType, level model.Level) (*model.ExamAttempt, error)
	UpdateExamAttempt(ctx context.Context, id string, answers []model.Answer, score *float64, completed bool) error
	SaveProgress(ctx context.Context, entry model.ProgressEntry) error
}

// Oracle generates exam items and evaluates free responses.
type Oracle interface {
	ItemGenerator
	EvaluateWriting(ctx context.Context, text, task string, level model.Level) (string, error)
	EvaluateSpeaking(ctx context.Context, text, task string, level model.Level) (string, error)
}

// Flow runs exams. It holds no per-user state; every call operates on the
// given Scratch, which the caller must not share between goroutines.
type Flow struct {
	store       Store
	oracle      Oracle
	transcriber speech.Transcriber
	selector    *Selector
	now         func() time.Time
}

// NewFlow creates an exam flow. A nil transcriber disables voice answers.
func NewFlow(store Store, oracle Oracle, transcriber speech.Transcriber) *Flow {
	if transcriber == nil {
		transcriber = speech.Disabled{}
	}
	var generator ItemGenerator
	if oracle != nil {
		generator = oracle
	}
	return &Flow{
		store:       store,
		oracle:      oracle,
		transcriber: transcriber,
		selector:    NewSelector(store, generator),
		now:         time.Now,
	}
}

type transitionKey struct {
	state State
	kind  EventKind
}

type handlerFunc func(f *Flow, ctx context.Context, sc *Scratch, ev Event) Outcome

var transitions = map[transitionKey]handlerFunc{
	{StateSelectingExam, EventSelectExam}:  (*Flow).selectExam,
	{StateSelectingExam, EventCancel}:      (*Flow).cancel,
	{StateAnsweringObjective, EventAnswer}: (*Flow).answer,
	{StateAnsweringObjective, EventNext}:   (*Flow).next,
	{StateAnsweringObjective, EventCancel}: (*Flow).cancel,
	{StateWritingResponse, EventText}:      (*Flow).appendWriting,
	{StateWritingResponse, EventSubmit}:    (*Flow).submitWriting,
	{StateWritingResponse, EventCancel}:    (*Flow).cancel,
	{StateSpeakingResponse, EventText}:     (*Flow).setSpeaking,
	{StateSpeakingResponse, EventVoice}:    (*Flow).transcribeSpeaking,
	{StateSpeakingResponse, EventSubmit}:   (*Flow).submitSpeaking,
	{StateSpeakingResponse, EventCancel}:   (*Flow).cancel,
}

// Menu returns the exam type selection prompt.
func (f *Flow) Menu(ctx context.Context) Outcome {
	return Outcome{Text: i18n.T(ctx, "ExamMenuPrompt"), Buttons: keyboard.ExamMenu(ctx)}
}

// Handle applies ev to sc. Events without a transition from the current
// state leave sc untouched and return an ignored Outcome.
func (f *Flow) Handle(ctx context.Context, sc *Scratch, ev Event) Outcome {
	h, ok := transitions[transitionKey{sc.State, ev.Kind}]
	if !ok {
		slog.Debug("ignored exam event", "user_id", sc.UserID, "state", sc.State, "event", ev.Kind)
		return Outcome{Ignored: true}
	}
	return h(f, ctx, sc, ev)
}

func (f *Flow) selectExam(ctx context.Context, sc *Scratch, ev Event) Outcome {
	if ev.ExamType == model.ExamFull {
		return Outcome{Text: i18n.T(ctx, "ExamFullComingSoon"), Buttons: keyboard.ExamMenu(ctx)}
	}
	if !ev.ExamType.IsValid() {
		slog.Debug("unknown exam type", "user_id", sc.UserID, "exam_type", ev.ExamType)
		return Outcome{Ignored: true}
	}

	questions := f.selector.Questions(ctx, sc.Level, ev.ExamType)
	if len(questions) == 0 {
		slog.Warn("no exam questions available", "user_id", sc.UserID, "level", sc.Level, "exam_type", ev.ExamType)
		return Outcome{Text: i18n.T(ctx, "NoQuestionsAvailable"), Buttons: keyboard.ExamMenu(ctx)}
	}

	sc.ExamType = ev.ExamType
	sc.Questions = questions
	sc.Cursor = 0
	sc.Answers = nil
	sc.Buffer = nil
	sc.Response = ""
	sc.AttemptID = ""

	attempt, err := f.store.CreateExamAttempt(ctx, sc.UserID, ev.ExamType, sc.Level)
	if err != nil {
		slog.Error("create exam attempt", "user_id", sc.UserID, "exam_type", ev.ExamType, "error", err)
	} else if attempt != nil {
		sc.AttemptID = attempt.ID
	}

	switch ev.ExamType {
	case model.ExamSchreiben:
		sc.State = StateWritingResponse
		return Outcome{
			Text:    format.WritingTask(ctx, sc.Level, questions[0]),
			Buttons: keyboard.SubmitCancel(ctx),
		}
	case model.ExamSprechen:
		sc.State = StateSpeakingResponse
		return Outcome{
			Text:    format.SpeakingTask(ctx, sc.Level, questions[0], f.transcriber.Available()),
			Buttons: keyboard.SubmitCancel(ctx),
		}
	default:
		sc.State = StateAnsweringObjective
		return f.showQuestion(ctx, sc)
	}
}

func (f *Flow) showQuestion(ctx context.Context, sc *Scratch) Outcome {
	q := sc.Questions[sc.Cursor]
	sc.Awaiting = true
	options := q.Data.Options
	if len(options) == 0 {
		options = []string{"A", "B", "C", "D"}
	}
	return Outcome{
		Text:    format.ExamQuestion(ctx, sc.Cursor+1, len(sc.Questions), q),
		Buttons: keyboard.MCQOptions(options),
	}
}

func (f *Flow) answer(ctx context.Context, sc *Scratch, ev Event) Outcome {
	if !sc.Awaiting || sc.Cursor >= len(sc.Questions) {
		slog.Debug("duplicate answer ignored", "user_id", sc.UserID, "cursor", sc.Cursor)
		return Outcome{Ignored: true}
	}

	q := sc.Questions[sc.Cursor]
	correct, explanation := CheckAnswer(q, ev.Letter)
	topic := q.Data.Topic
	if topic == "" {
		topic = string(sc.ExamType)
	}
	sc.Answers = append(sc.Answers, model.Answer{
		QuestionID:    q.ID,
		UserAnswer:    ev.Letter,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     correct,
		Topic:         topic,
	})
	sc.Cursor++
	sc.Awaiting = false

	feedback := format.AnswerFeedback(ctx, correct, explanation)
	if sc.Cursor >= len(sc.Questions) {
		out := f.finishObjective(ctx, sc)
		out.Text = feedback + "\n\n" + out.Text
		return out
	}
	return Outcome{Text: feedback, Buttons: keyboard.NextQuestion(ctx)}
}

func (f *Flow) next(ctx context.Context, sc *Scratch, _ Event) Outcome {
	if sc.Awaiting {
		slog.Debug("duplicate next ignored", "user_id", sc.UserID, "cursor", sc.Cursor)
		return Outcome{Ignored: true}
	}
	if sc.Cursor >= len(sc.Questions) {
		return f.finishObjective(ctx, sc)
	}
	return f.showQuestion(ctx, sc)
}

func (f *Flow) finishObjective(ctx context.Context, sc *Scratch) Outcome {
	result := CalculateScore(sc.Answers, sc.ExamType)
	f.complete(ctx, sc, sc.Answers, result.Score, result.WeakAreas)
	return Outcome{
		Text:    format.ExamResults(ctx, sc.ExamType, result),
		Buttons: keyboard.ViewResults(ctx),
	}
}

func (f *Flow) appendWriting(ctx context.Context, sc *Scratch, ev Event) Outcome {
	sc.Buffer = append(sc.Buffer, ev.Text)
	words := len(strings.Fields(strings.Join(sc.Buffer, " ")))
	return Outcome{
		Text:    i18n.Tp(ctx, "WritingReceived", words),
		Buttons: keyboard.SubmitCancel(ctx),
	}
}

func (f *Flow) submitWriting(ctx context.Context, sc *Scratch, _ Event) Outcome {
	text := strings.TrimSpace(strings.Join(sc.Buffer, " "))
	if text == "" {
		return Outcome{Text: i18n.T(ctx, "WritingEmpty"), Buttons: keyboard.SubmitCancel(ctx)}
	}
	q := sc.Questions[0]

	var result model.EvaluationResult
	raw, err := f.oracle.EvaluateWriting(ctx, text, q.Prompt(), sc.Level)
	if err != nil {
		slog.Error("evaluate writing", "user_id", sc.UserID, "error", err)
		result = evaluation.Default(model.EvaluationWriting)
	} else {
		result = evaluation.ParseWriting(raw)
	}
	f.finishSubjective(ctx, sc, q, text, &result)
	return Outcome{
		Text:    format.WritingEvaluation(ctx, &result),
		Buttons: keyboard.ViewResults(ctx),
	}
}

func (f *Flow) setSpeaking(ctx context.Context, sc *Scratch, ev Event) Outcome {
	sc.Response = strings.TrimSpace(ev.Text)
	return Outcome{Text: i18n.T(ctx, "SpeakingReceived"), Buttons: keyboard.SubmitCancel(ctx)}
}

func (f *Flow) transcribeSpeaking(ctx context.Context, sc *Scratch, ev Event) Outcome {
	if !f.transcriber.Available() {
		return Outcome{Text: i18n.T(ctx, "VoiceUnavailableType"), Buttons: keyboard.SubmitCancel(ctx)}
	}
	text, err := f.transcriber.Transcribe(ctx, ev.Audio, ev.AudioName)
	if err != nil {
		slog.Warn("transcribe speaking answer", "user_id", sc.UserID, "error", err)
		return Outcome{Text: i18n.T(ctx, "TranscriptionFailed"), Buttons: keyboard.SubmitCancel(ctx)}
	}
	sc.Response = text
	return Outcome{
		Text:    i18n.Td(ctx, "TranscriptReceived", map[string]any{"Text": text}),
		Buttons: keyboard.SubmitCancel(ctx),
	}
}

func (f *Flow) submitSpeaking(ctx context.Context, sc *Scratch, _ Event) Outcome {
	if sc.Response == "" {
		return Outcome{Text: i18n.T(ctx, "SpeakingEmpty"), Buttons: keyboard.SubmitCancel(ctx)}
	}
	q := sc.Questions[0]

	var result model.EvaluationResult
	raw, err := f.oracle.EvaluateSpeaking(ctx, sc.Response, q.Prompt(), sc.Level)
	if err != nil {
		slog.Error("evaluate speaking", "user_id", sc.UserID, "error", err)
		result = evaluation.Default(model.EvaluationSpeaking)
	} else {
		result = evaluation.ParseSpeaking(raw)
	}
	f.finishSubjective(ctx, sc, q, sc.Response, &result)
	return Outcome{
		Text:    format.SpeakingEvaluation(ctx, &result),
		Buttons: keyboard.ViewResults(ctx),
	}
}

func (f *Flow) finishSubjective(ctx context.Context, sc *Scratch, q model.Question, response string, result *model.EvaluationResult) {
	answers := []model.Answer{{QuestionID: q.ID, UserResponse: response, Evaluation: result}}
	weak := result.Suggestions
	if len(weak) > 3 {
		weak = weak[:3]
	}
	f.complete(ctx, sc, answers, result.OverallScore, weak)
}

// complete records the finished attempt and its progress entry, then moves
// sc to the terminal state. Persistence failures are logged only.
func (f *Flow) complete(ctx context.Context, sc *Scratch, answers []model.Answer, score float64, weakAreas []string) {
	if sc.AttemptID != "" {
		if err := f.store.UpdateExamAttempt(ctx, sc.AttemptID, answers, &score, true); err != nil {
			slog.Error("update exam attempt", "user_id", sc.UserID, "attempt_id", sc.AttemptID, "error", err)
		}
	}
	if weakAreas == nil {
		weakAreas = []string{}
	}
	err := f.store.SaveProgress(ctx, model.ProgressEntry{
		UserID:       sc.UserID,
		Skill:        string(sc.ExamType),
		ActivityType: model.ActivityExam,
		Score:        score,
		WeakAreas:    weakAreas,
		CompletedAt:  f.now(),
	})
	if err != nil {
		slog.Error("save exam progress", "user_id", sc.UserID, "error", err)
	}
	sc.State = StateTerminal
	sc.Awaiting = false
}

func (f *Flow) cancel(ctx context.Context, sc *Scratch, _ Event) Outcome {
	sc.State = StateTerminal
	sc.Awaiting = false
	return Outcome{Text: i18n.T(ctx, "ExamCancelled"), Buttons: keyboard.MainMenu(ctx)}
}
