package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/pavelanni/lernbot/internal/model"
)

// SaveConversation stores one tutoring turn.
func (s *Store) SaveConversation(ctx context.Context, turn model.ConversationTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_history (user_id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		turn.UserID, turn.SessionID, turn.Role, turn.Content, turn.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

// GetConversationHistory returns the latest limit turns of a user in
// chronological order. An empty sessionID spans all sessions.
func (s *Store) GetConversationHistory(ctx context.Context, userID int64, sessionID string, limit int) ([]model.ConversationTurn, error) {
	query := `SELECT user_id, session_id, role, content, timestamp FROM conversation_history WHERE user_id = ?`
	args := []any{userID}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	defer rows.Close()
	var turns []model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.UserID, &t.SessionID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(turns)
	return turns, nil
}
