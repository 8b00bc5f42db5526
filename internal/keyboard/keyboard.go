// Package keyboard builds inline button layouts and parses the payloads
// they send back.
package keyboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

// Button is one inline button. Payload is sent back when it is pressed.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Layout is a grid of buttons, one slice per row.
type Layout [][]Button

func row(buttons ...Button) []Button { return buttons }

func btn(ctx context.Context, msgID, payload string) Button {
	return Button{Text: i18n.T(ctx, msgID), Payload: payload}
}

// MainMenu is the top-level navigation.
func MainMenu(ctx context.Context) Layout {
	return Layout{
		row(btn(ctx, "BtnLearn", PayloadMenuLearn)),
		row(btn(ctx, "BtnExam", PayloadMenuExam)),
		row(btn(ctx, "BtnProgress", PayloadMenuProgress)),
		row(btn(ctx, "BtnSettings", PayloadMenuSettings)),
		row(btn(ctx, "BtnHelp", PayloadMenuHelp)),
	}
}

// LearnMenu offers the tutoring skills.
func LearnMenu(ctx context.Context) Layout {
	learn := func(s model.Skill) Button {
		return btn(ctx, "Skill_"+string(s), prefixLearn+string(s))
	}
	return Layout{
		row(learn(model.SkillConversation), learn(model.SkillGrammar)),
		row(learn(model.SkillLesen), learn(model.SkillHoren)),
		row(learn(model.SkillSchreiben), learn(model.SkillSprechen)),
		row(learn(model.SkillVokabular)),
		row(btn(ctx, "BtnBackToMenu", PayloadMenuMain)),
	}
}

// ExamMenu offers the exam sections.
func ExamMenu(ctx context.Context) Layout {
	exam := func(t model.ExamType) Button {
		return btn(ctx, "Exam_"+string(t), prefixExam+string(t))
	}
	return Layout{
		row(exam(model.ExamLesen), exam(model.ExamHoren)),
		row(exam(model.ExamSchreiben), exam(model.ExamSprechen)),
		row(exam(model.ExamVokabular)),
		row(exam(model.ExamFull)),
		row(btn(ctx, "BtnBackToMenu", PayloadMenuMain)),
	}
}

// LevelSelection lists the levels, marking current when set.
func LevelSelection(ctx context.Context, current model.Level) Layout {
	var l Layout
	for _, lvl := range model.Levels {
		text := string(lvl)
		if lvl == current {
			text += " " + i18n.T(ctx, "CurrentMarker")
		}
		l = append(l, row(Button{Text: text, Payload: prefixLevel + string(lvl)}))
	}
	return append(l, row(btn(ctx, "BtnCancel", PayloadCancel)))
}

// LanguageSelection lists the explanation languages, marking current when set.
func LanguageSelection(ctx context.Context, current model.Lang) Layout {
	var l Layout
	for _, lang := range model.Langs {
		text := i18n.T(ctx, "Lang_"+string(lang))
		if lang == current {
			text += " " + i18n.T(ctx, "CurrentMarker")
		}
		l = append(l, row(Button{Text: text, Payload: prefixLang + string(lang)}))
	}
	return append(l, row(btn(ctx, "BtnCancel", PayloadCancel)))
}

// SettingsMenu offers the settings actions.
func SettingsMenu(ctx context.Context) Layout {
	return Layout{
		row(btn(ctx, "BtnChangeLevel", PayloadSettingsLevel)),
		row(btn(ctx, "BtnChangeLang", PayloadSettingsLang)),
		row(btn(ctx, "BtnViewSubscription", PayloadSettingsSubscription)),
		row(btn(ctx, "BtnBackToMenu", PayloadMenuMain)),
	}
}

const maxOptionLabel = 50

// MCQOptions renders one button per option, lettered from A.
func MCQOptions(options []string) Layout {
	var l Layout
	for i, opt := range options {
		letter := string(rune('A' + i))
		label := stripLetter(opt, letter)
		if r := []rune(label); len(r) > maxOptionLabel {
			label = string(r[:maxOptionLabel]) + "..."
		}
		l = append(l, row(Button{
			Text:    fmt.Sprintf("%s) %s", letter, label),
			Payload: prefixAnswer + letter,
		}))
	}
	return l
}

// stripLetter removes an authored "A) " prefix so labels are not doubled.
func stripLetter(opt, letter string) string {
	for _, p := range []string{letter + ") ", letter + ")", letter + ". "} {
		if rest, ok := strings.CutPrefix(opt, p); ok {
			return rest
		}
	}
	return opt
}

// SubmitCancel is shown while composing a written or spoken response.
func SubmitCancel(ctx context.Context) Layout {
	return Layout{row(btn(ctx, "BtnSubmit", PayloadSubmit), btn(ctx, "BtnCancel", PayloadCancel))}
}

// NextQuestion follows objective answer feedback.
func NextQuestion(ctx context.Context) Layout {
	return Layout{row(btn(ctx, "BtnNextQuestion", PayloadNextQuestion))}
}

// ViewResults follows a finished exam.
func ViewResults(ctx context.Context) Layout {
	return Layout{
		row(btn(ctx, "BtnViewResults", PayloadViewResults)),
		row(btn(ctx, "BtnBackToMenu", PayloadMenuMain)),
	}
}

// ProgressActions follows the progress summary.
func ProgressActions(ctx context.Context) Layout {
	return Layout{
		row(btn(ctx, "BtnPracticeWeak", PayloadPracticeWeak)),
		row(btn(ctx, "BtnViewHistory", PayloadViewHistory)),
		row(btn(ctx, "BtnBackToMenu", PayloadMenuMain)),
	}
}

// BackToMenu is the single-button escape hatch.
func BackToMenu(ctx context.Context) Layout {
	return Layout{row(btn(ctx, "BtnBackToMenu", PayloadMenuMain))}
}

// EndConversation is shown during tutoring.
func EndConversation(ctx context.Context) Layout {
	return Layout{row(btn(ctx, "BtnEndConversation", PayloadEndConversation))}
}
