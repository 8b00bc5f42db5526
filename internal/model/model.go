package model

import "time"

// Level is a CEFR proficiency tier.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
)

// Levels lists the supported levels ordered weakest to strongest.
var Levels = []Level{LevelA1, LevelA2, LevelB1}

// IsValid reports whether l is one of the supported levels.
func (l Level) IsValid() bool {
	for _, v := range Levels {
		if v == l {
			return true
		}
	}
	return false
}

// Lang is the preferred explanation language of a user.
type Lang string

const (
	LangEnglish Lang = "english"
	LangAmharic Lang = "amharic"
	LangGerman  Lang = "german"
)

// Langs lists the supported explanation languages.
var Langs = []Lang{LangEnglish, LangAmharic, LangGerman}

// IsValid reports whether l is a supported explanation language.
func (l Lang) IsValid() bool {
	for _, v := range Langs {
		if v == l {
			return true
		}
	}
	return false
}

// Locale returns the UI locale tag used for this language.
// Amharic falls back to English as no catalog exists for it.
func (l Lang) Locale() string {
	if l == LangGerman {
		return "de"
	}
	return "en"
}

// ExamType identifies an exam section.
type ExamType string

const (
	ExamLesen     ExamType = "lesen"
	ExamHoren     ExamType = "horen"
	ExamSchreiben ExamType = "schreiben"
	ExamSprechen  ExamType = "sprechen"
	ExamVokabular ExamType = "vokabular"
	// ExamFull is the full mock exam, which is not yet offered.
	ExamFull ExamType = "full"
)

// ExamTypes lists the individually selectable exam sections.
var ExamTypes = []ExamType{ExamLesen, ExamHoren, ExamSchreiben, ExamSprechen, ExamVokabular}

// IsObjective reports whether the exam type is auto-gradable multiple choice.
func (t ExamType) IsObjective() bool {
	return t == ExamLesen || t == ExamHoren || t == ExamVokabular
}

// IsSubjective reports whether the exam type is graded by delegated evaluation.
func (t ExamType) IsSubjective() bool {
	return t == ExamSchreiben || t == ExamSprechen
}

// IsValid reports whether t is a selectable exam section.
func (t ExamType) IsValid() bool {
	return t.IsObjective() || t.IsSubjective()
}

// QuestionCount returns the default number of questions for the exam type.
func (t ExamType) QuestionCount() int {
	switch t {
	case ExamLesen, ExamHoren:
		return 5
	case ExamSchreiben, ExamSprechen:
		return 1
	case ExamVokabular:
		return 10
	default:
		return 5
	}
}

// Skill is a tutoring focus.
type Skill string

const (
	SkillConversation Skill = "conversation"
	SkillGrammar      Skill = "grammar"
	SkillLesen        Skill = "lesen"
	SkillHoren        Skill = "horen"
	SkillSchreiben    Skill = "schreiben"
	SkillSprechen     Skill = "sprechen"
	SkillVokabular    Skill = "vokabular"
)

// Skills lists all tutoring skills.
var Skills = []Skill{SkillConversation, SkillGrammar, SkillLesen, SkillHoren, SkillSchreiben, SkillSprechen, SkillVokabular}

// IsValid reports whether s is a known tutoring skill.
func (s Skill) IsValid() bool {
	for _, v := range Skills {
		if v == s {
			return true
		}
	}
	return false
}

// ActivityType tags a progress entry with what produced it.
type ActivityType string

const (
	ActivityExam     ActivityType = "exam"
	ActivityTutoring ActivityType = "tutoring"
)

// Role represents a chat message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User represents a registered learner.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username,omitempty"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Level              Level      `json:"current_level"`
	PreferredLang      Lang       `json:"preferred_lang"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastActive         *time.Time `json:"last_active,omitempty"`
}

// DisplayName returns the best available name for greetings.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Student"
}

// UserUpdate holds the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	Level         *Level
	PreferredLang *Lang
}

// QuestionData is the type-dependent payload of a question.
type QuestionData struct {
	Passage            string     `json:"passage,omitempty"`
	QuestionText       string     `json:"question_text,omitempty"`
	Options            []string   `json:"options,omitempty"`
	CorrectAnswer      string     `json:"correct_answer,omitempty"`
	Explanation        string     `json:"explanation,omitempty"`
	Topic              string     `json:"topic,omitempty"`
	Requirements       []string   `json:"requirements,omitempty"`
	WordCount          *WordCount `json:"word_count,omitempty"`
	ExamplePoints      []string   `json:"example_points,omitempty"`
	Hints              []string   `json:"hints,omitempty"`
	PreparationTimeSec int        `json:"preparation_time_sec,omitempty"`
	ResponseTimeSec    int        `json:"response_time_sec,omitempty"`
}

// WordCount bounds the length of a writing response.
type WordCount struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Question represents an exam item, stored or freshly generated.
type Question struct {
	ID            string       `json:"id"`
	Level         Level        `json:"level"`
	ExamType      ExamType     `json:"exam_type"`
	Text          string       `json:"question_text"`
	Data          QuestionData `json:"question_data"`
	CorrectAnswer string       `json:"correct_answer"`
	Difficulty    int          `json:"difficulty"`
	Generated     bool         `json:"generated"`
}

// Prompt returns the task text, preferring the top-level text.
func (q Question) Prompt() string {
	if q.Text != "" {
		return q.Text
	}
	return q.Data.QuestionText
}

// QuestionImport is the JSON format for importing questions.
type QuestionImport struct {
	Level         Level        `json:"level"`
	ExamType      ExamType     `json:"exam_type"`
	Text          string       `json:"question_text"`
	Data          QuestionData `json:"question_data"`
	CorrectAnswer string       `json:"correct_answer"`
	Difficulty    int          `json:"difficulty"`
}

// Answer is one recorded response inside an exam attempt.
type Answer struct {
	QuestionID    string            `json:"question_id"`
	UserAnswer    string            `json:"user_answer,omitempty"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
	IsCorrect     bool              `json:"is_correct"`
	Topic         string            `json:"topic,omitempty"`
	UserResponse  string            `json:"user_response,omitempty"`
	Evaluation    *EvaluationResult `json:"evaluation,omitempty"`
}

// ExamAttempt is one run through an exam type.
type ExamAttempt struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	ExamType    ExamType   `json:"exam_type"`
	Level       Level      `json:"level"`
	Answers     []Answer   `json:"answers"`
	Score       *float64   `json:"score,omitempty"`
	Completed   bool       `json:"is_completed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProgressEntry records the outcome of one learning activity.
type ProgressEntry struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	Skill        string       `json:"skill"`
	ActivityType ActivityType `json:"activity_type"`
	Score        float64      `json:"score"`
	WeakAreas    []string     `json:"weak_areas"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// Statistics aggregates a user's recent progress.
type Statistics struct {
	TotalActivities int                `json:"total_activities"`
	AverageScore    float64            `json:"average_score"`
	SkillScores     map[string]float64 `json:"skill_scores"`
	WeakAreas       []string           `json:"weak_areas"`
	Strengths       []string           `json:"strengths"`
}

// ScoreResult summarizes a finished objective exam.
type ScoreResult struct {
	Score          float64  `json:"score"`
	TotalQuestions int      `json:"total_questions"`
	CorrectAnswers int      `json:"correct_answers"`
	Passed         bool     `json:"passed"`
	WeakAreas      []string `json:"weak_areas"`
}

// ConversationTurn is one persisted tutoring message.
type ConversationTurn struct {
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionStatus is derived from the expiry timestamp on every gated call.
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "no_subscription"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpiring3 SubscriptionStatus = "expiring_soon_3"
	SubscriptionExpiring7 SubscriptionStatus = "expiring_soon_7"
)

// Permits reports whether the status allows gated operations.
func (s SubscriptionStatus) Permits() bool {
	return s == SubscriptionActive || s == SubscriptionExpiring3 || s == SubscriptionExpiring7
}
