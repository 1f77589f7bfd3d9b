// Package gamification tracks daily learning activity and streaks.
package gamification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nodusapp/sage/internal/storage"
)

const dayFormat = "2006-01-02"

// Tracker records activity days and derives the current streak. Recording is
// best-effort everywhere it is called from: a failed stats write must never
// fail the learning action that triggered it, so errors are logged and
// swallowed.
type Tracker struct {
	store  *storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(store *storage.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Record notes one learning activity for the user today and updates the
// streak: unchanged if today was already active, incremented if the last
// active day was yesterday, otherwise reset to one.
func (t *Tracker) Record(ctx context.Context, userID string) {
	today := t.now().UTC()
	day := today.Format(dayFormat)

	streak := 1
	stats, err := t.store.GetUserStats(ctx, userID)
	switch {
	case err == nil:
		streak = nextStreak(stats.CurrentStreak, stats.LastActivityDate, today)
	case errors.Is(err, storage.ErrNotFound):
		// First ever activity.
	default:
		t.logger.Warn("reading user stats failed", "user_id", userID, "error", err)
	}

	if err := t.store.RecordActivity(ctx, userID, day, streak); err != nil {
		t.logger.Warn("recording activity failed", "user_id", userID, "error", err)
	}
}

// Stats returns the user's streak and activity map. A user with no recorded
// activity gets zero stats rather than an error.
func (t *Tracker) Stats(ctx context.Context, userID string) (storage.UserStats, error) {
	stats, err := t.store.GetUserStats(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.UserStats{UserID: userID, ActivityMap: map[string]int{}}, nil
	}
	return stats, err
}

func nextStreak(current int, lastDay string, today time.Time) int {
	last, err := time.Parse(dayFormat, lastDay)
	if err != nil {
		return 1
	}
	switch today.Format(dayFormat) {
	case last.Format(dayFormat):
		if current < 1 {
			return 1
		}
		return current
	case last.AddDate(0, 0, 1).Format(dayFormat):
		return current + 1
	default:
		return 1
	}
}
