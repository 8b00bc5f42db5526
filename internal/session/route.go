package session

import (
	"context"
	"log/slog"

	"github.com/pavelanni/lernbot/internal/exam"
	"github.com/pavelanni/lernbot/internal/format"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/tutor"
)

// request is one event being handled under the entry lock.
type request struct {
	o    *Orchestrator
	e    *entry
	ev   Event
	user *model.User
}

// gatedFunc produces the reply of a subscription-gated operation.
type gatedFunc func(ctx context.Context) Reply

func (r *request) route(ctx context.Context) Reply {
	switch r.ev.Kind {
	case KindCommand:
		return r.command(ctx, normalizeCommand(r.ev.Command))
	case KindButton:
		return r.button(ctx)
	case KindText:
		return r.gated(ctx, r.text)
	case KindVoice:
		return r.gated(ctx, r.voice)
	}
	slog.Debug("ignored event kind", "user_id", r.ev.UserID, "kind", r.ev.Kind)
	return Reply{}
}

// gated runs fn when the subscription permits it and appends the renewal
// warning to its reply.
func (r *request) gated(ctx context.Context, fn gatedFunc) Reply {
	d := r.o.gate.Check(ctx, r.ev.UserID)
	if !d.Allowed() {
		slog.Info("access denied", "user_id", r.ev.UserID, "status", d.Status)
		return Reply{Text: d.Reason, Buttons: keyboard.BackToMenu(ctx)}
	}
	reply := fn(ctx)
	if !reply.Empty() && d.Warning != "" {
		reply.Text += d.Warning
	}
	return reply
}

func (r *request) command(ctx context.Context, cmd string) Reply {
	switch cmd {
	case "start":
		return r.start(ctx)
	case "help":
		return Reply{Text: format.Help(ctx), Buttons: keyboard.BackToMenu(ctx)}
	case "cancel":
		return r.cancel(ctx)
	case "ping":
		return Reply{Text: "Pong!"}
	case "menu":
		return r.gated(ctx, r.leave)
	case "learn":
		return r.gated(ctx, r.learnMenu)
	case "exam":
		return r.gated(ctx, r.examMenu)
	case "progress":
		return r.gated(ctx, r.progress)
	case "settings":
		return r.gated(ctx, r.settingsMenu)
	}
	slog.Debug("unknown command", "user_id", r.ev.UserID, "command", cmd)
	return Reply{Text: i18n.T(ctx, "UnknownCommand"), Buttons: keyboard.MainMenu(ctx)}
}

func (r *request) button(ctx context.Context) Reply {
	p, err := keyboard.ParsePayload(r.ev.Payload)
	if err != nil {
		slog.Debug("ignored button", "user_id", r.ev.UserID, "payload", r.ev.Payload, "error", err)
		return Reply{}
	}

	// Exempt from the gate.
	switch p.Action {
	case keyboard.ActionCancel:
		return r.cancel(ctx)
	case keyboard.ActionMenu:
		switch p.Arg {
		case "main":
			return r.leave(ctx)
		case "help":
			return Reply{Text: format.Help(ctx), Buttons: keyboard.BackToMenu(ctx)}
		}
	case keyboard.ActionLevel, keyboard.ActionLang:
		if reg, ok := r.e.scratch.(*RegistrationScratch); ok {
			return r.register(ctx, reg, p)
		}
	}

	return r.gated(ctx, func(ctx context.Context) Reply { return r.gatedButton(ctx, p) })
}

func (r *request) gatedButton(ctx context.Context, p keyboard.Payload) Reply {
	switch p.Action {
	case keyboard.ActionMenu:
		switch p.Arg {
		case "learn":
			return r.learnMenu(ctx)
		case "exam":
			return r.examMenu(ctx)
		case "progress":
			return r.progress(ctx)
		case "settings":
			return r.settingsMenu(ctx)
		}
	case keyboard.ActionLearn:
		return r.startTutoring(ctx, model.Skill(p.Arg))
	case keyboard.ActionEndConversation:
		if ts, ok := r.e.scratch.(TutorScratch); ok {
			return fromTutor(r.o.tutor.End(ctx, ts.Scratch))
		}
	case keyboard.ActionExam:
		es := r.examScratch()
		return r.examEvent(ctx, es, exam.Event{Kind: exam.EventSelectExam, ExamType: model.ExamType(p.Arg)})
	case keyboard.ActionAnswer:
		if es, ok := r.e.scratch.(ExamScratch); ok {
			return r.examEvent(ctx, es, exam.Event{Kind: exam.EventAnswer, Letter: p.Arg})
		}
	case keyboard.ActionNextQuestion:
		if es, ok := r.e.scratch.(ExamScratch); ok {
			return r.examEvent(ctx, es, exam.Event{Kind: exam.EventNext})
		}
	case keyboard.ActionSubmit:
		if es, ok := r.e.scratch.(ExamScratch); ok {
			return r.examEvent(ctx, es, exam.Event{Kind: exam.EventSubmit})
		}
	case keyboard.ActionSettingsLevel:
		return r.askSetting(ctx, SettingLevel)
	case keyboard.ActionSettingsLang:
		return r.askSetting(ctx, SettingLang)
	case keyboard.ActionSettingsSubscription:
		return r.subscription(ctx)
	case keyboard.ActionLevel, keyboard.ActionLang:
		if ss, ok := r.e.scratch.(*SettingsScratch); ok {
			return r.applySetting(ctx, ss, p)
		}
	case keyboard.ActionPracticeWeak:
		return r.practiceWeak(ctx)
	case keyboard.ActionViewHistory, keyboard.ActionViewResults:
		return r.history(ctx)
	}
	slog.Debug("ignored button in flow", "user_id", r.ev.UserID, "flow", r.e.scratch.Flow(), "payload", p.String())
	return Reply{}
}

func (r *request) text(ctx context.Context) Reply {
	switch sc := r.e.scratch.(type) {
	case TutorScratch:
		return fromTutor(r.o.tutor.Say(ctx, sc.Scratch, r.ev.Text))
	case ExamScratch:
		return r.examEvent(ctx, sc, exam.Event{Kind: exam.EventText, Text: r.ev.Text})
	}
	return Reply{Text: i18n.T(ctx, "UseMenuHint"), Buttons: keyboard.MainMenu(ctx)}
}

func (r *request) voice(ctx context.Context) Reply {
	switch sc := r.e.scratch.(type) {
	case TutorScratch:
		return fromTutor(r.o.tutor.Voice(ctx, sc.Scratch, r.ev.Audio, r.ev.AudioName))
	case ExamScratch:
		return r.examEvent(ctx, sc, exam.Event{Kind: exam.EventVoice, Audio: r.ev.Audio, AudioName: r.ev.AudioName})
	}
	return Reply{Text: i18n.T(ctx, "UseMenuHint"), Buttons: keyboard.MainMenu(ctx)}
}

// cancel abandons the current flow without scoring.
func (r *request) cancel(ctx context.Context) Reply {
	var reply Reply
	switch sc := r.e.scratch.(type) {
	case ExamScratch:
		reply = fromExam(r.o.exams.Handle(ctx, sc.Scratch, exam.Event{Kind: exam.EventCancel}))
	case TutorScratch:
		if sc.State == tutor.StateInConversation {
			reply = fromTutor(r.o.tutor.Cancel(ctx, sc.Scratch))
		}
	}
	r.e.scratch = NoFlow{}
	if reply.Empty() {
		reply = Reply{Text: i18n.T(ctx, "OperationCancelled"), Buttons: keyboard.MainMenu(ctx)}
	}
	return reply
}

// leave drops the current flow and shows the main menu.
func (r *request) leave(ctx context.Context) Reply {
	if f := r.e.scratch.Flow(); f != FlowNone {
		slog.Debug("leaving flow", "user_id", r.ev.UserID, "flow", f)
	}
	r.e.scratch = NoFlow{}
	return Reply{Text: i18n.T(ctx, "MainMenuPrompt"), Buttons: keyboard.MainMenu(ctx)}
}

func (r *request) learnMenu(ctx context.Context) Reply {
	r.e.scratch = TutorScratch{tutor.NewScratch(r.ev.UserID)}
	return fromTutor(r.o.tutor.Menu(ctx))
}

func (r *request) startTutoring(ctx context.Context, skill model.Skill) Reply {
	ts, ok := r.e.scratch.(TutorScratch)
	if !ok || ts.State != tutor.StateSelectingSkill {
		ts = TutorScratch{tutor.NewScratch(r.ev.UserID)}
		r.e.scratch = ts
	}
	return fromTutor(r.o.tutor.Start(ctx, ts.Scratch, skill))
}

func (r *request) examMenu(ctx context.Context) Reply {
	r.e.scratch = ExamScratch{exam.NewScratch(r.ev.UserID, r.level())}
	return fromExam(r.o.exams.Menu(ctx))
}

// examScratch returns the exam waiting for a type pick, starting one when
// the user is elsewhere.
func (r *request) examScratch() ExamScratch {
	es, ok := r.e.scratch.(ExamScratch)
	if !ok || es.State != exam.StateSelectingExam {
		es = ExamScratch{exam.NewScratch(r.ev.UserID, r.level())}
		r.e.scratch = es
	}
	return es
}

func (r *request) examEvent(ctx context.Context, es ExamScratch, ev exam.Event) Reply {
	return fromExam(r.o.exams.Handle(ctx, es.Scratch, ev))
}

func (r *request) level() model.Level {
	if r.user != nil && r.user.Level.IsValid() {
		return r.user.Level
	}
	return model.LevelA1
}

func fromExam(o exam.Outcome) Reply {
	if o.Ignored {
		return Reply{}
	}
	return Reply{Text: o.Text, Buttons: o.Buttons}
}

func fromTutor(o tutor.Outcome) Reply {
	if o.Ignored {
		return Reply{}
	}
	return Reply{Text: o.Text, Buttons: o.Buttons}
}
