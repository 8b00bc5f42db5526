package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed payloads.
const (
	PayloadMenuMain             = "menu_main"
	PayloadMenuLearn            = "menu_learn"
	PayloadMenuExam             = "menu_exam"
	PayloadMenuProgress         = "menu_progress"
	PayloadMenuSettings         = "menu_settings"
	PayloadMenuHelp             = "menu_help"
	PayloadNextQuestion         = "next_question"
	PayloadSubmit               = "submit"
	PayloadCancel               = "cancel"
	PayloadEndConversation      = "end_conversation"
	PayloadSettingsLevel        = "settings_level"
	PayloadSettingsLang         = "settings_lang"
	PayloadSettingsSubscription = "settings_subscription"
	PayloadPracticeWeak         = "practice_weak"
	PayloadViewHistory          = "view_history"
	PayloadViewResults          = "view_results"
)

const (
	prefixMenu   = "menu_"
	prefixLearn  = "learn_"
	prefixExam   = "exam_"
	prefixAnswer = "answer_"
	prefixLevel  = "level_"
	prefixLang   = "lang_"
)

// Action is the parsed kind of a button payload.
type Action string

const (
	ActionMenu                 Action = "menu"
	ActionLearn                Action = "learn"
	ActionExam                 Action = "exam"
	ActionAnswer               Action = "answer"
	ActionNextQuestion         Action = "next_question"
	ActionSubmit               Action = "submit"
	ActionCancel               Action = "cancel"
	ActionEndConversation      Action = "end_conversation"
	ActionLevel                Action = "level"
	ActionLang                 Action = "lang"
	ActionSettingsLevel        Action = "settings_level"
	ActionSettingsLang         Action = "settings_lang"
	ActionSettingsSubscription Action = "settings_subscription"
	ActionPracticeWeak         Action = "practice_weak"
	ActionViewHistory          Action = "view_history"
	ActionViewResults          Action = "view_results"
)

// Payload is a parsed button payload. Arg carries the suffix of prefixed
// payloads, such as the skill of learn_grammar or the letter of answer_B.
type Payload struct {
	Action Action
	Arg    string
}

// ErrUnknownPayload is returned for payloads no button produces.
var ErrUnknownPayload = errors.New("unknown payload")

var fixed = map[string]Action{
	PayloadNextQuestion:         ActionNextQuestion,
	PayloadSubmit:               ActionSubmit,
	PayloadCancel:               ActionCancel,
	PayloadEndConversation:      ActionEndConversation,
	PayloadSettingsLevel:        ActionSettingsLevel,
	PayloadSettingsLang:         ActionSettingsLang,
	PayloadSettingsSubscription: ActionSettingsSubscription,
	PayloadPracticeWeak:         ActionPracticeWeak,
	PayloadViewHistory:          ActionViewHistory,
	PayloadViewResults:          ActionViewResults,
}

var prefixed = []struct {
	prefix string
	action Action
}{
	{prefixMenu, ActionMenu},
	{prefixLearn, ActionLearn},
	{prefixExam, ActionExam},
	{prefixAnswer, ActionAnswer},
	{prefixLevel, ActionLevel},
	{prefixLang, ActionLang},
}

// ParsePayload decodes a button payload.
func ParsePayload(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if a, ok := fixed[s]; ok {
		return Payload{Action: a}, nil
	}
	for _, p := range prefixed {
		if arg, ok := strings.CutPrefix(s, p.prefix); ok && arg != "" {
			return Payload{Action: p.action, Arg: arg}, nil
		}
	}
	return Payload{}, fmt.Errorf("parse payload %q: %w", s, ErrUnknownPayload)
}

// String re-encodes the payload.
func (p Payload) String() string {
	for _, pr := range prefixed {
		if pr.action == p.Action {
			return pr.prefix + p.Arg
		}
	}
	return string(p.Action)
}
