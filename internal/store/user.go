package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/lernbot/internal/model"
)

const userColumns = `id, username, first_name, last_name, current_level, preferred_lang,
	subscription_expiry, created_at, last_active`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Level, &u.PreferredLang,
		&u.SubscriptionExpiry, &u.CreatedAt, &u.LastActive)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a learner. The new user has no subscription.
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, last_name, current_level, preferred_lang, created_at, last_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.FirstName, u.LastName, u.Level, u.PreferredLang, now, now,
	)
	if err != nil {
		slog.Error("failed to create user", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("insert user: %w", err)
	}
	slog.Info("created user", "user_id", u.ID, "username", u.Username, "level", u.Level)
	return &u, nil
}

// GetUser returns a user by ID, or nil if not registered.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser applies the non-nil fields of upd and refreshes last_active.
func (s *Store) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	query := `UPDATE users SET last_active = ?`
	args := []any{s.now()}
	if upd.Level != nil {
		query += `, current_level = ?`
		args = append(args, *upd.Level)
	}
	if upd.PreferredLang != nil {
		query += `, preferred_lang = ?`
		args = append(args, *upd.PreferredLang)
	}
	query += ` WHERE id = ?`
	args = append(args, id)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

// TouchLastActive records activity for a user.
func (s *Store) TouchLastActive(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, s.now(), id)
	return err
}

// CheckSubscription reports whether the user's subscription is active,
// along with its expiry. Unknown users have no subscription.
func (s *Store) CheckSubscription(ctx context.Context, id int64) (bool, *time.Time, error) {
	var expiry *time.Time
	err := s.db.QueryRowContext(ctx, `SELECT subscription_expiry FROM users WHERE id = ?`, id).Scan(&expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("check subscription %d: %w", id, err)
	}
	if expiry == nil {
		return false, nil, nil
	}
	return expiry.After(s.now()), expiry, nil
}

// GrantSubscription sets the subscription expiry of a registered user.
func (s *Store) GrantSubscription(ctx context.Context, id int64, until time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET subscription_expiry = ? WHERE id = ?`, until.UTC(), id)
	if err != nil {
		return fmt.Errorf("grant subscription %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("grant subscription: %w", ErrUserNotFound)
	}
	slog.Info("granted subscription", "user_id", id, "until", until)
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
