package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// GetUserStats returns the gamification record for a user, including the
// per-day activity map.
func (s *Store) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	var stats UserStats
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_streak, last_activity_date, total_activities
		FROM user_stats WHERE user_id = ?`, userID,
	).Scan(&stats.UserID, &stats.CurrentStreak, &stats.LastActivityDate, &stats.TotalActivities)
	if err == sql.ErrNoRows {
		return UserStats{}, ErrNotFound
	}
	if err != nil {
		return UserStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, count FROM activity_log WHERE user_id = ?`, userID)
	if err != nil {
		return UserStats{}, err
	}
	defer rows.Close()

	stats.ActivityMap = make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return UserStats{}, err
		}
		stats.ActivityMap[day] = count
	}
	return stats, rows.Err()
}

// RecordActivity writes one qualifying activity for the given calendar day,
// updating streak state and the daily counter in a single transaction.
func (s *Store) RecordActivity(ctx context.Context, userID, day string, streak int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning activity transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO user_stats (user_id, current_streak, last_activity_date, total_activities)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			last_activity_date = excluded.last_activity_date,
			total_activities = total_activities + 1`,
		userID, streak, day,
	); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO activity_log (user_id, day, count) VALUES (?, ?, 1)
		ON CONFLICT(user_id, day) DO UPDATE SET count = count + 1`,
		userID, day,
	); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
