// Package mcp exposes the student's notebook and wallet to MCP clients, so
// an editor-side assistant can ground its answers in the same material the
// tutor uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nodusapp/sage/internal/retrieval"
	"github.com/nodusapp/sage/internal/storage"
)

// NoteRetriever abstracts semantic search for the MCP layer.
type NoteRetriever interface {
	Retrieve(ctx context.Context, query string, sources []retrieval.SourceRef) ([]retrieval.Scored, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Store     *storage.Store
	Retriever NoteRetriever
	UserID    string
}

// NewServer creates an MCP server with the notebook and wallet tools and
// resources registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"sage",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sage — the student's study notebook and mistake wallet, searchable for grounding answers."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Semantically search the student's notebook and return the most relevant excerpts."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		searchNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("list_wallet",
			mcp.WithDescription("List the student's learned concepts and recorded errors, optionally filtered by type."),
			mcp.WithString("type", mcp.Description(`Filter by "concept" or "error"; omit for everything`)),
		),
		listWallet(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sage://sources",
			"Notebook Sources",
			mcp.WithResourceDescription("The student's ingested notebook sources as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		resourceSources(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sage://threads",
			"Recent Chats",
			mcp.WithResourceDescription("The student's recent tutoring threads (titles only)"),
			mcp.WithMIMEType("application/json"),
		),
		resourceThreads(deps),
	)

	return s
}

func searchNotes(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		sources, err := deps.Store.ListSourcesByUser(ctx, deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sources failed: %v", err)), nil
		}
		refs := make([]retrieval.SourceRef, 0, len(sources))
		for _, src := range sources {
			refs = append(refs, retrieval.SourceRef{ID: src.ID, Title: src.Title})
		}

		scored, err := deps.Retriever.Retrieve(ctx, query, refs)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(scored) == 0 {
			return mcpText("[]"), nil
		}

		type noteResult struct {
			SourceID    string  `json:"source_id"`
			SourceTitle string  `json:"source_title"`
			Text        string  `json:"text"`
			Score       float64 `json:"score"`
		}
		results := make([]noteResult, len(scored))
		for i, s := range scored {
			results[i] = noteResult{
				SourceID:    s.SourceID,
				SourceTitle: s.SourceTitle,
				Text:        s.Text,
				Score:       s.Score,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func listWallet(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := req.GetString("type", "")
		if filter != "" && filter != storage.WalletConcept && filter != storage.WalletError {
			return mcpError(fmt.Sprintf("unknown type %q", filter)), nil
		}

		items, err := deps.Store.ListWalletItems(ctx, deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("listing wallet failed: %v", err)), nil
		}

		filtered := items[:0]
		for _, item := range items {
			if filter == "" || item.Type == filter {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(filtered)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal wallet: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func resourceSources(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sources, err := deps.Store.ListSourcesByUser(ctx, deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("listing sources: %w", err)
		}
		b, err := json.Marshal(sources)
		if err != nil {
			return nil, fmt.Errorf("marshaling sources: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func resourceThreads(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		threads, err := deps.Store.ListThreadsByUser(ctx, deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("listing threads: %w", err)
		}

		type threadSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			UpdatedAt string `json:"updated_at"`
		}
		summaries := make([]threadSummary, 0, len(threads))
		for i, th := range threads {
			if i == 10 {
				break
			}
			title := th.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries = append(summaries, threadSummary{
				ID:        th.ID,
				Title:     title,
				UpdatedAt: th.UpdatedAt.Format(time.RFC3339),
			})
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("marshaling threads: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
