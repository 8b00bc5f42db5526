// Package store is the SQLite record store: learners, exam content, exam
// attempts, progress and tutoring transcripts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUserNotFound is returned by updates addressed to an unregistered user.
var ErrUserNotFound = errors.New("user not found")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps SQLite writes serialized and lets ":memory:"
	// databases survive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		current_level TEXT NOT NULL DEFAULT 'A1',
		preferred_lang TEXT NOT NULL DEFAULT 'english',
		subscription_expiry DATETIME,
		created_at DATETIME NOT NULL,
		last_active DATETIME
	);

	CREATE TABLE IF NOT EXISTS exam_questions (
		id TEXT PRIMARY KEY,
		level TEXT NOT NULL,
		exam_type TEXT NOT NULL,
		question_text TEXT NOT NULL,
		question_data TEXT NOT NULL DEFAULT '{}',
		correct_answer TEXT NOT NULL DEFAULT '',
		difficulty INTEGER NOT NULL DEFAULT 5,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_attempts (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		exam_type TEXT NOT NULL,
		level TEXT NOT NULL,
		answers TEXT NOT NULL DEFAULT '[]',
		score REAL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS user_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		skill TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		weak_areas TEXT NOT NULL DEFAULT '[]',
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS conversation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_subscription ON users(subscription_expiry);
	CREATE INDEX IF NOT EXISTS idx_exam_questions_level_type ON exam_questions(level, exam_type, difficulty);
	CREATE INDEX IF NOT EXISTS idx_exam_attempts_user ON exam_attempts(user_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_conversation_user_session ON conversation_history(user_id, session_id);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// encodeJSON marshals v for a TEXT column, writing "null" values as empty.
func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
