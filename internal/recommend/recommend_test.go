package recommend

import (
	"context"
	"strings"
	"testing"

	"github.com/nodusapp/sage/internal/storage"
)

func newTestRecommender(t *testing.T, limit int) (*Recommender, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, limit), store
}

func TestForUser_NoErrors(t *testing.T) {
	r, _ := newTestRecommender(t, 3)
	got, err := r.ForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, res := range got {
		if res.Reason != "" {
			t.Errorf("default recommendation %s carries a match reason", res.ID)
		}
	}
}

func TestForUser_MatchesErrorTags(t *testing.T) {
	r, store := newTestRecommender(t, 3)
	ctx := context.Background()

	err := store.CreateWalletItem(ctx, storage.WalletItem{
		ID: "e1", UserID: "u1", Type: storage.WalletError,
		Title: "useEffect runs forever", Tags: []string{"React", "useEffect"},
	})
	if err != nil {
		t.Fatalf("CreateWalletItem: %v", err)
	}

	got, err := r.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "res-react-hooks" {
		t.Errorf("top recommendation = %s, want res-react-hooks", got[0].ID)
	}
	if !strings.Contains(got[0].Reason, "react") {
		t.Errorf("reason = %q, want tag mention", got[0].Reason)
	}
}

func TestForUser_UnresolvedWeighsHeavier(t *testing.T) {
	r, store := newTestRecommender(t, 2)
	ctx := context.Background()

	// Resolved python error vs unresolved sql error: sql should win.
	items := []storage.WalletItem{
		{ID: "e1", UserID: "u1", Type: storage.WalletError, Title: "t", Tags: []string{"python"}, Resolved: true},
		{ID: "e2", UserID: "u1", Type: storage.WalletError, Title: "t", Tags: []string{"sql"}},
	}
	for _, item := range items {
		if err := store.CreateWalletItem(ctx, item); err != nil {
			t.Fatalf("CreateWalletItem: %v", err)
		}
	}

	got, err := r.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if got[0].ID != "res-sql-joins" {
		t.Errorf("top recommendation = %s, want res-sql-joins", got[0].ID)
	}
}

func TestForUser_IgnoresOtherUsers(t *testing.T) {
	r, store := newTestRecommender(t, 3)
	ctx := context.Background()

	err := store.CreateWalletItem(ctx, storage.WalletItem{
		ID: "e1", UserID: "someone-else", Type: storage.WalletError,
		Title: "t", Tags: []string{"git"},
	})
	if err != nil {
		t.Fatalf("CreateWalletItem: %v", err)
	}

	got, err := r.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	for _, res := range got {
		if res.Reason != "" {
			t.Errorf("recommendation %s matched another user's errors", res.ID)
		}
	}
}
