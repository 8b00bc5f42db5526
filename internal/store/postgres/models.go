package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/lernbot/internal/model"
)

const (
	statisticsWindow = 100
	importHashKey    = "import_sha256:"
)

func newID() string { return uuid.NewString() }

type userRow struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement:false"`
	Username           string     `gorm:"size:255;not null;default:''"`
	FirstName          string     `gorm:"size:255;not null;default:''"`
	LastName           string     `gorm:"size:255;not null;default:''"`
	CurrentLevel       string     `gorm:"size:2;not null;default:'A1'"`
	PreferredLang      string     `gorm:"size:16;not null;default:'english'"`
	SubscriptionExpiry *time.Time `gorm:"index"`
	CreatedAt          time.Time  `gorm:"not null"`
	LastActive         *time.Time
}

func (userRow) TableName() string { return "users" }

func toUserRow(u model.User) userRow {
	return userRow{
		ID:                 u.ID,
		Username:           u.Username,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		CurrentLevel:       string(u.Level),
		PreferredLang:      string(u.PreferredLang),
		SubscriptionExpiry: u.SubscriptionExpiry,
		CreatedAt:          u.CreatedAt,
		LastActive:         u.LastActive,
	}
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:                 r.ID,
		Username:           r.Username,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Level:              model.Level(r.CurrentLevel),
		PreferredLang:      model.Lang(r.PreferredLang),
		SubscriptionExpiry: r.SubscriptionExpiry,
		CreatedAt:          r.CreatedAt,
		LastActive:         r.LastActive,
	}
}

type questionRow struct {
	ID            string             `gorm:"type:uuid;primaryKey"`
	Level         string             `gorm:"size:2;not null;index:idx_exam_questions_level_type"`
	ExamType      string             `gorm:"size:20;not null;index:idx_exam_questions_level_type"`
	QuestionText  string             `gorm:"type:text;not null"`
	QuestionData  model.QuestionData `gorm:"type:jsonb;serializer:json"`
	CorrectAnswer string             `gorm:"type:text;not null;default:''"`
	Difficulty    int                `gorm:"not null;default:5;index:idx_exam_questions_level_type"`
	IsActive      bool               `gorm:"not null;default:true"`
	CreatedAt     time.Time
}

func (questionRow) TableName() string { return "exam_questions" }

func toQuestionRow(q model.Question, now time.Time) questionRow {
	if q.ID == "" {
		q.ID = newID()
	}
	if q.Difficulty == 0 {
		q.Difficulty = 5
	}
	if q.Text == "" {
		q.Text = q.Data.QuestionText
	}
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = q.Data.CorrectAnswer
	}
	return questionRow{
		ID:            q.ID,
		Level:         string(q.Level),
		ExamType:      string(q.ExamType),
		QuestionText:  q.Text,
		QuestionData:  q.Data,
		CorrectAnswer: q.CorrectAnswer,
		Difficulty:    q.Difficulty,
		IsActive:      true,
		CreatedAt:     now,
	}
}

func (r questionRow) toModel() model.Question {
	return model.Question{
		ID:            r.ID,
		Level:         model.Level(r.Level),
		ExamType:      model.ExamType(r.ExamType),
		Text:          r.QuestionText,
		Data:          r.QuestionData,
		CorrectAnswer: r.CorrectAnswer,
		Difficulty:    r.Difficulty,
	}
}

type attemptRow struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	UserID      int64          `gorm:"not null;index:idx_exam_attempts_user"`
	User        *userRow       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ExamType    string         `gorm:"size:20;not null"`
	Level       string         `gorm:"size:2;not null"`
	Answers     []model.Answer `gorm:"type:jsonb;serializer:json"`
	Score       *float64
	IsCompleted bool       `gorm:"not null;default:false"`
	StartedAt   time.Time  `gorm:"not null"`
	CompletedAt *time.Time `gorm:"index:idx_exam_attempts_user"`
}

func (attemptRow) TableName() string { return "exam_attempts" }

func toAttemptRow(a model.ExamAttempt) attemptRow {
	return attemptRow{
		ID:          a.ID,
		UserID:      a.UserID,
		ExamType:    string(a.ExamType),
		Level:       string(a.Level),
		Answers:     a.Answers,
		Score:       a.Score,
		IsCompleted: a.Completed,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
}

func attemptsToModel(rows []attemptRow) []model.ExamAttempt {
	attempts := make([]model.ExamAttempt, 0, len(rows))
	for _, r := range rows {
		answers := r.Answers
		if answers == nil {
			answers = []model.Answer{}
		}
		attempts = append(attempts, model.ExamAttempt{
			ID:          r.ID,
			UserID:      r.UserID,
			ExamType:    model.ExamType(r.ExamType),
			Level:       model.Level(r.Level),
			Answers:     answers,
			Score:       r.Score,
			Completed:   r.IsCompleted,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return attempts
}

type progressRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	UserID       int64     `gorm:"not null;index:idx_user_progress_user"`
	User         *userRow  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Skill        string    `gorm:"size:32;not null"`
	ActivityType string    `gorm:"size:16;not null"`
	Score        float64   `gorm:"not null;default:0"`
	WeakAreas    []string  `gorm:"type:jsonb;serializer:json"`
	CompletedAt  time.Time `gorm:"not null;index:idx_user_progress_user"`
}

func (progressRow) TableName() string { return "user_progress" }

func toProgressRow(e model.ProgressEntry) progressRow {
	weak := e.WeakAreas
	if weak == nil {
		weak = []string{}
	}
	return progressRow{
		UserID:       e.UserID,
		Skill:        e.Skill,
		ActivityType: string(e.ActivityType),
		Score:        e.Score,
		WeakAreas:    weak,
		CompletedAt:  e.CompletedAt.UTC(),
	}
}

func (r progressRow) toModel() model.ProgressEntry {
	return model.ProgressEntry{
		ID:           r.ID,
		UserID:       r.UserID,
		Skill:        r.Skill,
		ActivityType: model.ActivityType(r.ActivityType),
		Score:        r.Score,
		WeakAreas:    r.WeakAreas,
		CompletedAt:  r.CompletedAt,
	}
}

type conversationRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index:idx_conversation_user_session"`
	User      *userRow  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	SessionID string    `gorm:"size:64;not null;index:idx_conversation_user_session"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string { return "conversation_history" }

func toConversationRow(t model.ConversationTurn) conversationRow {
	return conversationRow{
		UserID:    t.UserID,
		SessionID: t.SessionID,
		Role:      string(t.Role),
		Content:   t.Content,
		Timestamp: t.Timestamp.UTC(),
	}
}

func (r conversationRow) toModel() model.ConversationTurn {
	return model.ConversationTurn{
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Role:      model.Role(r.Role),
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
}

type metadataRow struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (metadataRow) TableName() string { return "metadata" }
