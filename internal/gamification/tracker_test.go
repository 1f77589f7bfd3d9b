package gamification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nodusapp/sage/internal/storage"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(store, logger)
}

func atDay(tr *Tracker, day string) {
	parsed, _ := time.Parse("2006-01-02", day)
	tr.now = func() time.Time { return parsed.Add(12 * time.Hour) }
}

func TestRecord_StreakProgression(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	atDay(tr, "2026-03-01")
	tr.Record(ctx, "u1")
	stats, err := tr.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("first day streak = %d, want 1", stats.CurrentStreak)
	}

	// Same day again: streak unchanged, activity counted.
	tr.Record(ctx, "u1")
	stats, _ = tr.Stats(ctx, "u1")
	if stats.CurrentStreak != 1 {
		t.Errorf("same-day streak = %d, want 1", stats.CurrentStreak)
	}
	if stats.TotalActivities != 2 {
		t.Errorf("total = %d, want 2", stats.TotalActivities)
	}

	// Next day: streak grows.
	atDay(tr, "2026-03-02")
	tr.Record(ctx, "u1")
	stats, _ = tr.Stats(ctx, "u1")
	if stats.CurrentStreak != 2 {
		t.Errorf("consecutive-day streak = %d, want 2", stats.CurrentStreak)
	}

	// A gap resets to one.
	atDay(tr, "2026-03-05")
	tr.Record(ctx, "u1")
	stats, _ = tr.Stats(ctx, "u1")
	if stats.CurrentStreak != 1 {
		t.Errorf("post-gap streak = %d, want 1", stats.CurrentStreak)
	}

	if stats.ActivityMap["2026-03-01"] != 2 || stats.ActivityMap["2026-03-02"] != 1 {
		t.Errorf("activity map wrong: %v", stats.ActivityMap)
	}
}

func TestStats_UnknownUser(t *testing.T) {
	tr := newTestTracker(t)
	stats, err := tr.Stats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CurrentStreak != 0 || stats.TotalActivities != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if stats.ActivityMap == nil {
		t.Error("activity map should be non-nil for JSON encoding")
	}
}

func TestNextStreak_MonthBoundary(t *testing.T) {
	today, _ := time.Parse("2006-01-02", "2026-03-01")
	if got := nextStreak(5, "2026-02-28", today); got != 6 {
		t.Errorf("streak across month boundary = %d, want 6", got)
	}
}
