package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestWalletList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/wallet": `[{"id":"w-001","type":"concept","title":"Closures","resolved":false},{"id":"w-002","type":"error","title":"nil map write","resolved":false}]`,
	})

	client := ts.client()
	resp, err := client.get("/api/wallet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var items []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	if err := decodeJSON(resp, &items); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Type != "error" {
		t.Errorf("type = %q, want error", items[1].Type)
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestWalletResolve(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/wallet/w-002/resolve": `{"id":"w-002","type":"error","title":"nil map write","resolved":true}`,
	})

	client := ts.client()
	resp, err := client.do(ctx, "POST", "/api/wallet/w-002/resolve", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var item struct {
		Resolved bool `json:"resolved"`
	}
	if err := decodeJSON(resp, &item); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !item.Resolved {
		t.Error("expected item to be resolved")
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Method != "POST" {
		t.Errorf("method = %q, want POST", ts.requests[0].Method)
	}
}

func TestNotebookList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/notebook": `{"items":[{"source":{"id":"src-1","title":"Lecture 3","type":"pdf","chunkCount":12},"chunks":[]}]}`,
	})

	client := ts.client()
	resp, err := client.get("/api/notebook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var list struct {
		Items []struct {
			Source struct {
				ID         string `json:"id"`
				ChunkCount int    `json:"chunkCount"`
			} `json:"source"`
		} `json:"items"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(list.Items) != 1 {
		t.Fatalf("expected 1 source, got %d", len(list.Items))
	}
	if list.Items[0].Source.ChunkCount != 12 {
		t.Errorf("chunkCount = %d, want 12", list.Items[0].Source.ChunkCount)
	}
}

func TestNotebookDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /api/notebook/src-1": `{"status":"deleted"}`,
	})

	client := ts.client()
	resp, err := client.delete("/api/notebook/src-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "deleted" {
		t.Errorf("status = %q, want deleted", result["status"])
	}
}

func TestWalletResolve_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"wallet", "resolve"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get("/api/wallet")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get("/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"abcdef1234567890", "abcdef12"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortID(tt.id); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
