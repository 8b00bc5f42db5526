// Package postgres is the PostgreSQL record store, built on GORM. It mirrors
// the SQLite store method for method so either can back the bot.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/store"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := New(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// New wraps an open GORM handle without migrating.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// AutoMigrate runs database migrations
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&userRow{},
		&questionRow{},
		&attemptRow{},
		&progressRow{},
		&conversationRow{},
		&metadataRow{},
	)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// User operations

func (s *Store) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.Level == "" {
		u.Level = model.LevelA1
	}
	if u.PreferredLang == "" {
		u.PreferredLang = model.LangEnglish
	}
	now := s.now()
	u.CreatedAt = now
	u.LastActive = &now
	u.SubscriptionExpiry = nil
	row := toUserRow(u)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		slog.Error("failed to create user", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("insert user: %w", err)
	}
	slog.Info("created user", "user_id", u.ID, "username", u.Username, "level", u.Level)
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	fields := map[string]any{"last_active": s.now()}
	if upd.Level != nil {
		fields["current_level"] = string(*upd.Level)
	}
	if upd.PreferredLang != nil {
		fields["preferred_lang"] = string(*upd.PreferredLang)
	}
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) TouchLastActive(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("last_active", s.now()).Error
}

func (s *Store) CheckSubscription(ctx context.Context, id int64) (bool, *time.Time, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return false, nil, fmt.Errorf("check subscription %d: %w", id, err)
	}
	if u == nil || u.SubscriptionExpiry == nil {
		return false, nil, nil
	}
	return u.SubscriptionExpiry.After(s.now()), u.SubscriptionExpiry, nil
}

func (s *Store) GrantSubscription(ctx context.Context, id int64, until time.Time) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("subscription_expiry", until.UTC())
	if res.Error != nil {
		return fmt.Errorf("grant subscription %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("grant subscription: %w", store.ErrUserNotFound)
	}
	slog.Info("granted subscription", "user_id", id, "until", until)
	return nil
}

func (s *Store) UserCount(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error
	return int(n), err
}

// Question operations

func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (string, error) {
	row := toQuestionRow(q, s.now())
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("insert question: %w", err)
	}
	return row.ID, nil
}

func (s *Store) GetExamQuestions(ctx context.Context, level model.Level, examType model.ExamType, minDifficulty, maxDifficulty, limit int) ([]model.Question, error) {
	var rows []questionRow
	err := s.db.WithContext(ctx).
		Where("level = ? AND exam_type = ? AND is_active = ?", string(level), string(examType), true).
		Where("difficulty BETWEEN ? AND ?", minDifficulty, maxDifficulty).
		Order("RANDOM()").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query exam questions: %w", err)
	}
	questions := make([]model.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.toModel())
	}
	return questions, nil
}

func (s *Store) GetRandomExamQuestions(ctx context.Context, level model.Level, examType model.ExamType, count int) ([]model.Question, error) {
	return store.Stratified(count, func(minDifficulty, maxDifficulty, limit int) ([]model.Question, error) {
		return s.GetExamQuestions(ctx, level, examType, minDifficulty, maxDifficulty, limit)
	})
}

func (s *Store) SetQuestionActive(ctx context.Context, id string, active bool) error {
	return s.db.WithContext(ctx).Model(&questionRow{}).Where("id = ?", id).Update("is_active", active).Error
}

func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&questionRow{}).Count(&n).Error
	return int(n), err
}

func (s *Store) ImportQuestions(ctx context.Context, items []model.QuestionImport) (int, error) {
	now := s.now()
	rows := make([]questionRow, 0, len(items))
	for i, it := range items {
		q, err := store.FromImport(it)
		if err != nil {
			return 0, fmt.Errorf("question %d: %w", i, err)
		}
		rows = append(rows, toQuestionRow(q, now))
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	return len(rows), nil
}

// Attempt operations

func (s *Store) CreateExamAttempt(ctx context.Context, userID int64, examType model.ExamType, level model.Level) (*model.ExamAttempt, error) {
	a := model.ExamAttempt{
		ID:        newID(),
		UserID:    userID,
		ExamType:  examType,
		Level:     level,
		Answers:   []model.Answer{},
		StartedAt: s.now(),
	}
	row := toAttemptRow(a)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert exam attempt: %w", err)
	}
	return &a, nil
}

func (s *Store) UpdateExamAttempt(ctx context.Context, id string, answers []model.Answer, score *float64, completed bool) error {
	if answers == nil {
		answers = []model.Answer{}
	}
	row := attemptRow{Answers: answers, IsCompleted: completed}
	columns := []string{"answers", "is_completed"}
	if completed {
		now := s.now()
		row.CompletedAt = &now
		columns = append(columns, "completed_at")
	}
	if score != nil {
		row.Score = score
		columns = append(columns, "score")
	}
	// Select writes false and the JSON answers, which a map or zero-value
	// struct update would skip.
	err := s.db.WithContext(ctx).Model(&attemptRow{}).Where("id = ?", id).
		Select(columns).Updates(&row).Error
	if err != nil {
		return fmt.Errorf("update exam attempt %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetExamAttempts(ctx context.Context, userID int64, examType string, limit int) ([]model.ExamAttempt, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND is_completed = ?", userID, true)
	if examType != "" {
		q = q.Where("exam_type = ?", examType)
	}
	var rows []attemptRow
	if err := q.Order("completed_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query exam attempts: %w", err)
	}
	return attemptsToModel(rows), nil
}

func (s *Store) ListAttempts(ctx context.Context) ([]model.ExamAttempt, error) {
	var rows []attemptRow
	if err := s.db.WithContext(ctx).Order("started_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query exam attempts: %w", err)
	}
	return attemptsToModel(rows), nil
}

func (s *Store) ExportAttempts(ctx context.Context) ([]model.LearnerResult, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	attempts, err := s.ListAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return store.BuildExport(users, attempts), nil
}

// Progress operations

func (s *Store) SaveProgress(ctx context.Context, e model.ProgressEntry) error {
	if e.CompletedAt.IsZero() {
		e.CompletedAt = s.now()
	}
	row := toProgressRow(e)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (s *Store) GetUserProgress(ctx context.Context, userID int64, skill string, limit int) ([]model.ProgressEntry, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if skill != "" {
		q = q.Where("skill = ?", skill)
	}
	var rows []progressRow
	if err := q.Order("completed_at desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	entries := make([]model.ProgressEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toModel())
	}
	return entries, nil
}

func (s *Store) GetUserStatistics(ctx context.Context, userID int64) (*model.Statistics, error) {
	entries, err := s.GetUserProgress(ctx, userID, "", statisticsWindow)
	if err != nil {
		return nil, err
	}
	stats := store.Summarize(entries)
	return &stats, nil
}

// Conversation operations

func (s *Store) SaveConversation(ctx context.Context, turn model.ConversationTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	row := toConversationRow(turn)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

func (s *Store) GetConversationHistory(ctx context.Context, userID int64, sessionID string, limit int) ([]model.ConversationTurn, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var rows []conversationRow
	if err := q.Order("timestamp desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	turns := make([]model.ConversationTurn, len(rows))
	for i, r := range rows {
		turns[len(rows)-1-i] = r.toModel()
	}
	return turns, nil
}

// Metadata operations

func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Save(&metadataRow{Key: key, Value: value}).Error
}

func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var row metadataRow
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		if notFound(err) {
			return "", nil
		}
		return "", err
	}
	return row.Value, nil
}

func (s *Store) GetImportedFileHash(ctx context.Context, name string) (string, error) {
	return s.GetMetadata(ctx, importHashKey+name)
}

func (s *Store) SetImportedFileHash(ctx context.Context, name, sum string) error {
	return s.SetMetadata(ctx, importHashKey+name, sum)
}
