package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSourcesAndChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	src := Source{ID: "src-1", UserID: "u1", Title: "Notes", FileName: "notes.pdf", Type: "pdf"}
	if err := s.CreateSource(ctx, src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	chunks := []Chunk{
		{ID: "src-1_0", SourceID: "src-1", Index: 0, Text: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "src-1_1", SourceID: "src-1", Index: 1, Text: "beta", Embedding: []float32{0, 1, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	if err := s.UpdateSourceChunkCount(ctx, "src-1", 2); err != nil {
		t.Fatalf("UpdateSourceChunkCount: %v", err)
	}

	got, err := s.GetSource(ctx, "src-1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", got.ChunkCount)
	}

	loaded, err := s.ChunksBySource(ctx, "src-1")
	if err != nil {
		t.Fatalf("ChunksBySource: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(loaded))
	}
	if loaded[0].Index != 0 || loaded[1].Index != 1 {
		t.Error("chunks not in sequence order")
	}
	if len(loaded[0].Embedding) != 3 || loaded[0].Embedding[0] != 1 {
		t.Errorf("embedding round-trip failed: %v", loaded[0].Embedding)
	}

	// Deleting the source removes its chunks too.
	if err := s.DeleteSource(ctx, "src-1"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if _, err := s.GetSource(ctx, "src-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSource after delete = %v, want ErrNotFound", err)
	}
	orphans, err := s.ChunksBySource(ctx, "src-1")
	if err != nil {
		t.Fatalf("ChunksBySource after delete: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected no orphaned chunks, got %d", len(orphans))
	}
}

func TestListSourcesByUser_Isolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, src := range []Source{
		{ID: "a", UserID: "u1", Title: "A", Type: "pdf"},
		{ID: "b", UserID: "u2", Title: "B", Type: "youtube"},
	} {
		if err := s.CreateSource(ctx, src); err != nil {
			t.Fatalf("CreateSource: %v", err)
		}
	}

	got, err := s.ListSourcesByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSourcesByUser: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected only u1's source, got %+v", got)
	}
}

func TestWalletItemLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item := WalletItem{
		ID: "w1", UserID: "u1", Type: WalletError,
		Title: "Infinite loop in useEffect", Summary: "Missing dependency array.",
		Tags: []string{"react", "hooks"}, Severity: "high", Category: "Logic",
	}
	if err := s.CreateWalletItem(ctx, item); err != nil {
		t.Fatalf("CreateWalletItem: %v", err)
	}

	got, err := s.GetWalletItem(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWalletItem: %v", err)
	}
	if got.Resolved {
		t.Error("new error item should not be resolved")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "react" {
		t.Errorf("tags round-trip failed: %v", got.Tags)
	}

	resolved := true
	newTitle := "Fixed: infinite loop"
	updated, err := s.UpdateWalletItem(ctx, "w1", WalletItemPatch{Title: &newTitle, Resolved: &resolved})
	if err != nil {
		t.Fatalf("UpdateWalletItem: %v", err)
	}
	if !updated.Resolved || updated.Title != newTitle {
		t.Errorf("patch not applied: %+v", updated)
	}

	titles, err := s.UnresolvedErrorTitles(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("UnresolvedErrorTitles: %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("resolved error still listed as unresolved: %v", titles)
	}

	if err := s.DeleteWalletItem(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWalletItem: %v", err)
	}
	if err := s.DeleteWalletItem(ctx, "w1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestUnresolvedErrorTitles_Limit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		item := WalletItem{
			ID: string(rune('a' + i)), UserID: "u1", Type: WalletError,
			Title:     "err" + string(rune('0'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateWalletItem(ctx, item); err != nil {
			t.Fatalf("CreateWalletItem: %v", err)
		}
	}

	titles, err := s.UnresolvedErrorTitles(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("UnresolvedErrorTitles: %v", err)
	}
	if len(titles) != 5 {
		t.Fatalf("len(titles) = %d, want 5", len(titles))
	}
	if titles[0] != "err7" {
		t.Errorf("expected newest first, got %v", titles)
	}
}

func TestThreadsAndMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateThread(ctx, Thread{ID: "t1", UserID: "u1", Model: "gemini-1.5-flash"}); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	for i, m := range []ChatMessage{
		{ID: "m1", ThreadID: "t1", Role: "user", Content: "what is a slice?"},
		{ID: "m2", ThreadID: "t1", Role: "assistant", Content: "a view over an array"},
	} {
		m.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if err := s.AddMessage(ctx, m); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	msgs, err := s.MessagesByThread(ctx, "t1")
	if err != nil {
		t.Fatalf("MessagesByThread: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("unexpected message order: %+v", msgs)
	}

	if err := s.UpdateThreadTitle(ctx, "t1", "Slices"); err != nil {
		t.Fatalf("UpdateThreadTitle: %v", err)
	}
	th, err := s.GetThread(ctx, "t1")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th.Title != "Slices" {
		t.Errorf("title = %q, want Slices", th.Title)
	}
}

func TestRecordActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordActivity(ctx, "u1", "2026-09-01", 1); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if err := s.RecordActivity(ctx, "u1", "2026-09-01", 1); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if err := s.RecordActivity(ctx, "u1", "2026-09-02", 2); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	stats, err := s.GetUserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if stats.CurrentStreak != 2 {
		t.Errorf("streak = %d, want 2", stats.CurrentStreak)
	}
	if stats.TotalActivities != 3 {
		t.Errorf("total = %d, want 3", stats.TotalActivities)
	}
	if stats.ActivityMap["2026-09-01"] != 2 || stats.ActivityMap["2026-09-02"] != 1 {
		t.Errorf("activity map wrong: %v", stats.ActivityMap)
	}

	if _, err := s.GetUserStats(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserStats(nobody) = %v, want ErrNotFound", err)
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3.125, 0}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
