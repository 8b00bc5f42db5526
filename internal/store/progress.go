package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pavelanni/lernbot/internal/model"
)

const (
	// statisticsWindow is how many recent progress rows feed the statistics.
	statisticsWindow = 100
	maxWeakAreas     = 5
	strengthScore    = 75.0
)

// SaveProgress appends a progress entry. A zero CompletedAt is stamped now.
func (s *Store) SaveProgress(ctx context.Context, e model.ProgressEntry) error {
	if e.CompletedAt.IsZero() {
		e.CompletedAt = s.now()
	}
	weak, err := encodeJSON(e.WeakAreas, "[]")
	if err != nil {
		return fmt.Errorf("encode weak_areas: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_progress (user_id, skill, activity_type, score, weak_areas, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Skill, e.ActivityType, e.Score, weak, e.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

// GetUserProgress returns up to limit progress entries, newest first. An
// empty skill matches all skills.
func (s *Store) GetUserProgress(ctx context.Context, userID int64, skill string, limit int) ([]model.ProgressEntry, error) {
	query := `SELECT id, user_id, skill, activity_type, score, weak_areas, completed_at FROM user_progress WHERE user_id = ?`
	args := []any{userID}
	if skill != "" {
		query += ` AND skill = ?`
		args = append(args, skill)
	}
	query += ` ORDER BY completed_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()
	var entries []model.ProgressEntry
	for rows.Next() {
		var e model.ProgressEntry
		var weak string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Skill, &e.ActivityType, &e.Score, &weak, &e.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weak), &e.WeakAreas); err != nil {
			return nil, fmt.Errorf("decode weak_areas of progress %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetUserStatistics aggregates the user's most recent progress entries.
func (s *Store) GetUserStatistics(ctx context.Context, userID int64) (*model.Statistics, error) {
	entries, err := s.GetUserProgress(ctx, userID, "", statisticsWindow)
	if err != nil {
		return nil, err
	}
	stats := Summarize(entries)
	return &stats, nil
}

// Summarize aggregates progress entries, given newest first. Weak areas are
// the most frequent ones, ties broken by first appearance; strengths are
// skills averaging at least 75.
func Summarize(entries []model.ProgressEntry) model.Statistics {
	stats := model.Statistics{
		TotalActivities: len(entries),
		SkillScores:     map[string]float64{},
		WeakAreas:       []string{},
		Strengths:       []string{},
	}
	if len(entries) == 0 {
		return stats
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	var skills []string
	weakCount := map[string]int{}
	var weakOrder []string
	var total float64

	for _, e := range entries {
		skill := e.Skill
		if skill == "" {
			skill = "unknown"
		}
		if counts[skill] == 0 {
			skills = append(skills, skill)
		}
		sums[skill] += e.Score
		counts[skill]++
		total += e.Score
		for _, area := range e.WeakAreas {
			if weakCount[area] == 0 {
				weakOrder = append(weakOrder, area)
			}
			weakCount[area]++
		}
	}

	for _, skill := range skills {
		avg := sums[skill] / float64(counts[skill])
		stats.SkillScores[skill] = avg
		if avg >= strengthScore {
			stats.Strengths = append(stats.Strengths, skill)
		}
	}
	stats.AverageScore = total / float64(len(entries))

	sort.SliceStable(weakOrder, func(i, j int) bool {
		return weakCount[weakOrder[i]] > weakCount[weakOrder[j]]
	})
	if len(weakOrder) > maxWeakAreas {
		weakOrder = weakOrder[:maxWeakAreas]
	}
	stats.WeakAreas = append(stats.WeakAreas, weakOrder...)
	return stats
}
