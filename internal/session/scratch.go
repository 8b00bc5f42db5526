package session

import (
	"github.com/pavelanni/lernbot/internal/exam"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/tutor"
)

// Flow is the kind of conversation a session is in.
type Flow string

const (
	FlowNone         Flow = "none"
	FlowTutoring     Flow = "tutoring"
	FlowExam         Flow = "exam"
	FlowRegistration Flow = "registration"
	FlowSettings     Flow = "settings"
)

// Scratch is the flow-specific state of a session. Exactly one of NoFlow,
// TutorScratch, ExamScratch, RegistrationScratch and SettingsScratch.
type Scratch interface {
	Flow() Flow
}

// NoFlow is the state between flows.
type NoFlow struct{}

func (NoFlow) Flow() Flow { return FlowNone }

// TutorScratch wraps a tutoring session.
type TutorScratch struct {
	*tutor.Scratch
}

func (TutorScratch) Flow() Flow { return FlowTutoring }

// ExamScratch wraps a running exam.
type ExamScratch struct {
	*exam.Scratch
}

func (ExamScratch) Flow() Flow { return FlowExam }

// RegistrationStep is the question a registering user has to answer next.
type RegistrationStep int

const (
	StepLevel RegistrationStep = iota
	StepLang
)

// RegistrationScratch collects a new user's profile before CreateUser.
type RegistrationScratch struct {
	Step    RegistrationStep
	Profile Profile
	Level   model.Level
}

func (*RegistrationScratch) Flow() Flow { return FlowRegistration }

// SettingField is the user setting being changed.
type SettingField int

const (
	SettingNone SettingField = iota
	SettingLevel
	SettingLang
)

// SettingsScratch tracks the settings menu.
type SettingsScratch struct {
	Changing SettingField
}

func (*SettingsScratch) Flow() Flow { return FlowSettings }

// settle clears flows that reached their terminal state.
func settle(s Scratch) Scratch {
	switch sc := s.(type) {
	case nil:
		return NoFlow{}
	case ExamScratch:
		if sc.State == exam.StateTerminal {
			return NoFlow{}
		}
	case TutorScratch:
		if sc.State == tutor.StateEnded {
			return NoFlow{}
		}
	}
	return s
}
