package session

import (
	"context"
	"log/slog"

	"github.com/pavelanni/lernbot/internal/exam"
	"github.com/pavelanni/lernbot/internal/format"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/model"
)

// historyLimit is how many completed attempts the history view lists.
const historyLimit = 10

// start greets a known user or begins registration.
func (r *request) start(ctx context.Context) Reply {
	if r.user == nil {
		r.e.scratch = &RegistrationScratch{Step: StepLevel, Profile: r.ev.Profile}
		slog.Info("starting registration", "user_id", r.ev.UserID, "username", r.ev.Profile.Username)
		return Reply{
			Text:    i18n.Td(ctx, "RegisterWelcome", map[string]any{"Name": displayName(r.ev.Profile)}),
			Buttons: keyboard.LevelSelection(ctx, ""),
		}
	}

	r.e.scratch = NoFlow{}
	name := r.user.DisplayName()
	active, expiry, err := r.o.store.CheckSubscription(ctx, r.ev.UserID)
	if err != nil {
		slog.Error("check subscription on start", "user_id", r.ev.UserID, "error", err)
	}
	if err := r.o.store.TouchLastActive(ctx, r.ev.UserID); err != nil {
		slog.Error("touch last active", "user_id", r.ev.UserID, "error", err)
	}
	if active {
		return Reply{
			Text:    i18n.Td(ctx, "WelcomeBack", map[string]any{"Name": name, "Level": r.user.Level}),
			Buttons: keyboard.MainMenu(ctx),
		}
	}
	status := i18n.T(ctx, "StatusNotActivated")
	if expiry != nil {
		status = i18n.Td(ctx, "StatusExpiredOn", map[string]any{"Expiry": expiry.Format(format.DateLayout)})
	}
	return Reply{
		Text:    i18n.Td(ctx, "WelcomeBackInactive", map[string]any{"Name": name, "Status": status}),
		Buttons: keyboard.BackToMenu(ctx),
	}
}

func (r *request) register(ctx context.Context, reg *RegistrationScratch, p keyboard.Payload) Reply {
	switch {
	case reg.Step == StepLevel && p.Action == keyboard.ActionLevel:
		level := model.Level(p.Arg)
		if !level.IsValid() {
			return Reply{}
		}
		reg.Level = level
		reg.Step = StepLang
		return Reply{
			Text:    i18n.Td(ctx, "RegisterLevelChosen", map[string]any{"Level": level}),
			Buttons: keyboard.LanguageSelection(ctx, ""),
		}

	case reg.Step == StepLang && p.Action == keyboard.ActionLang:
		lang := model.Lang(p.Arg)
		if !lang.IsValid() {
			return Reply{}
		}
		r.e.scratch = NoFlow{}
		user, err := r.o.store.CreateUser(ctx, model.User{
			ID:            r.ev.UserID,
			Username:      reg.Profile.Username,
			FirstName:     reg.Profile.FirstName,
			LastName:      reg.Profile.LastName,
			Level:         reg.Level,
			PreferredLang: lang,
		})
		if err != nil {
			slog.Error("register user", "user_id", r.ev.UserID, "error", err)
			return Reply{Text: i18n.T(ctx, "RegistrationFailed"), Buttons: keyboard.BackToMenu(ctx)}
		}
		r.user = user
		ctx = localize(ctx, user)
		return Reply{
			Text: i18n.Td(ctx, "RegistrationComplete", map[string]any{
				"Level": user.Level,
				"Lang":  i18n.T(ctx, "Lang_"+string(user.PreferredLang)),
			}),
			Buttons: keyboard.BackToMenu(ctx),
		}
	}
	slog.Debug("ignored registration button", "user_id", r.ev.UserID, "step", reg.Step, "payload", p.String())
	return Reply{}
}

func (r *request) progress(ctx context.Context) Reply {
	stats, err := r.o.store.GetUserStatistics(ctx, r.ev.UserID)
	if err != nil {
		slog.Error("load statistics", "user_id", r.ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.BackToMenu(ctx)}
	}
	level := r.level()
	var recommendation string
	if stats.TotalActivities > 0 {
		_, recommendation = exam.RecommendLevel(level, stats.AverageScore)
	}
	return Reply{
		Text:    format.ProgressSummary(ctx, *stats, level, recommendation),
		Buttons: keyboard.ProgressActions(ctx),
	}
}

func (r *request) practiceWeak(ctx context.Context) Reply {
	stats, err := r.o.store.GetUserStatistics(ctx, r.ev.UserID)
	if err != nil {
		slog.Error("load statistics", "user_id", r.ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.BackToMenu(ctx)}
	}
	return Reply{Text: format.WeakAreas(ctx, stats.WeakAreas), Buttons: keyboard.LearnMenu(ctx)}
}

func (r *request) history(ctx context.Context) Reply {
	attempts, err := r.o.store.GetExamAttempts(ctx, r.ev.UserID, "", historyLimit)
	if err != nil {
		slog.Error("load exam history", "user_id", r.ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.BackToMenu(ctx)}
	}
	return Reply{Text: format.ExamHistory(ctx, attempts), Buttons: keyboard.ProgressActions(ctx)}
}

func (r *request) settingsMenu(ctx context.Context) Reply {
	r.e.scratch = &SettingsScratch{}
	return Reply{Text: i18n.T(ctx, "SettingsPrompt"), Buttons: keyboard.SettingsMenu(ctx)}
}

func (r *request) askSetting(ctx context.Context, field SettingField) Reply {
	r.e.scratch = &SettingsScratch{Changing: field}
	if field == SettingLevel {
		level := r.level()
		return Reply{
			Text:    i18n.Td(ctx, "CurrentLevelPrompt", map[string]any{"Level": level}),
			Buttons: keyboard.LevelSelection(ctx, level),
		}
	}
	lang := model.LangEnglish
	if r.user != nil {
		lang = r.user.PreferredLang
	}
	return Reply{
		Text:    i18n.Td(ctx, "CurrentLangPrompt", map[string]any{"Lang": i18n.T(ctx, "Lang_"+string(lang))}),
		Buttons: keyboard.LanguageSelection(ctx, lang),
	}
}

func (r *request) applySetting(ctx context.Context, ss *SettingsScratch, p keyboard.Payload) Reply {
	var upd model.UserUpdate
	switch {
	case ss.Changing == SettingLevel && p.Action == keyboard.ActionLevel:
		level := model.Level(p.Arg)
		if !level.IsValid() {
			return Reply{}
		}
		upd.Level = &level
	case ss.Changing == SettingLang && p.Action == keyboard.ActionLang:
		lang := model.Lang(p.Arg)
		if !lang.IsValid() {
			return Reply{}
		}
		upd.PreferredLang = &lang
	default:
		slog.Debug("ignored settings button", "user_id", r.ev.UserID, "changing", ss.Changing, "payload", p.String())
		return Reply{}
	}

	ss.Changing = SettingNone
	user, err := r.o.store.UpdateUser(ctx, r.ev.UserID, upd)
	if err != nil || user == nil {
		slog.Error("update user settings", "user_id", r.ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.SettingsMenu(ctx)}
	}
	r.user = user
	if upd.Level != nil {
		return Reply{
			Text:    i18n.Td(ctx, "LevelUpdated", map[string]any{"Level": user.Level}),
			Buttons: keyboard.SettingsMenu(ctx),
		}
	}
	ctx = localize(ctx, user)
	return Reply{
		Text:    i18n.Td(ctx, "LangUpdated", map[string]any{"Lang": i18n.T(ctx, "Lang_"+string(user.PreferredLang))}),
		Buttons: keyboard.SettingsMenu(ctx),
	}
}

func (r *request) subscription(ctx context.Context) Reply {
	active, expiry, err := r.o.store.CheckSubscription(ctx, r.ev.UserID)
	if err != nil {
		slog.Error("check subscription", "user_id", r.ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.BackToMenu(ctx)}
	}
	return Reply{Text: format.SubscriptionInfo(ctx, expiry, active), Buttons: keyboard.BackToMenu(ctx)}
}

func displayName(p Profile) string {
	u := model.User{Username: p.Username, FirstName: p.FirstName}
	return u.DisplayName()
}
