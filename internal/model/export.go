package model

import "time"

// AttemptExport is the top-level JSON structure for exam attempt export.
type AttemptExport struct {
	ExportedAt  time.Time       `json:"exported_at"`
	NumAttempts int             `json:"num_attempts"`
	Results     []LearnerResult `json:"results"`
}

// LearnerResult holds one learner's attempts for export.
type LearnerResult struct {
	UserID       int64           `json:"user_id"`
	Username     string          `json:"username,omitempty"`
	DisplayName  string          `json:"display_name"`
	Level        Level           `json:"current_level"`
	AverageScore float64         `json:"average_score"`
	Attempts     []AttemptResult `json:"attempts"`
}

// AttemptResult holds per-attempt data for export.
type AttemptResult struct {
	AttemptNumber int        `json:"attempt_number"`
	ExamType      ExamType   `json:"exam_type"`
	Level         Level      `json:"level"`
	Score         *float64   `json:"score,omitempty"`
	Passed        bool       `json:"passed"`
	Completed     bool       `json:"is_completed"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Answers       []Answer   `json:"answers"`
}
