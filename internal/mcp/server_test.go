package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nodusapp/sage/internal/retrieval"
	"github.com/nodusapp/sage/internal/storage"
)

type mockRetriever struct {
	results []retrieval.Scored
	err     error
	refs    []retrieval.SourceRef
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, refs []retrieval.SourceRef) ([]retrieval.Scored, error) {
	m.refs = refs
	return m.results, m.err
}

func newTestDeps(t *testing.T) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Store:     store,
		Retriever: &mockRetriever{},
		UserID:    "default",
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestSearchNotes(t *testing.T) {
	deps, store := newTestDeps(t)
	retriever := &mockRetriever{
		results: []retrieval.Scored{
			{Candidate: retrieval.Candidate{SourceID: "s1", SourceTitle: "Notes", Text: "maps are unordered"}, Score: 0.9},
		},
	}
	deps.Retriever = retriever

	ctx := context.Background()
	if err := store.CreateSource(ctx, storage.Source{ID: "s1", UserID: "default", Title: "Notes", Type: "pdf"}); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	handler := searchNotes(deps)
	result, err := handler(ctx, makeCallToolRequest("search_notes", map[string]interface{}{
		"query": "maps",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	if len(retriever.refs) != 1 || retriever.refs[0].ID != "s1" {
		t.Errorf("retriever refs = %+v", retriever.refs)
	}

	var notes []map[string]interface{}
	if err := json.Unmarshal([]byte(toolText(t, result)), &notes); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(notes) != 1 || notes[0]["text"] != "maps are unordered" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestSearchNotes_RequiresQuery(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := searchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestSearchNotes_RetrieverFailure(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Retriever = &mockRetriever{err: errors.New("backend down")}
	handler := searchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]interface{}{
		"query": "maps",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when retrieval fails")
	}
}

func TestListWallet_FiltersByType(t *testing.T) {
	deps, store := newTestDeps(t)
	ctx := context.Background()

	items := []storage.WalletItem{
		{ID: "c1", UserID: "default", Type: storage.WalletConcept, Title: "Slices"},
		{ID: "e1", UserID: "default", Type: storage.WalletError, Title: "Nil deref"},
	}
	for _, item := range items {
		if err := store.CreateWalletItem(ctx, item); err != nil {
			t.Fatalf("CreateWalletItem: %v", err)
		}
	}

	handler := listWallet(deps)
	result, err := handler(ctx, makeCallToolRequest("list_wallet", map[string]interface{}{
		"type": "error",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []storage.WalletItem
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Nil deref" {
		t.Errorf("filtered wallet = %+v", got)
	}

	result, err = handler(ctx, makeCallToolRequest("list_wallet", map[string]interface{}{
		"type": "badge",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown type")
	}
}

func TestListWallet_Empty(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := listWallet(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_wallet", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("empty wallet = %q, want []", got)
	}
}
