// Package api exposes the tutoring service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nodusapp/sage/internal/gamification"
	"github.com/nodusapp/sage/internal/gemini"
	"github.com/nodusapp/sage/internal/ingest"
	"github.com/nodusapp/sage/internal/recommend"
	"github.com/nodusapp/sage/internal/retrieval"
	"github.com/nodusapp/sage/internal/sandbox"
	"github.com/nodusapp/sage/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB, uploads carry their own limit

// Generator is the slice of the model client the handlers need.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error)
	Stream(ctx context.Context, systemPrompt string, history []gemini.Turn, message string, webSearch bool, handle gemini.StreamHandler) (string, error)
	ExtractDocumentText(ctx context.Context, mimeType string, data []byte) (string, error)
}

// NoteRetriever finds relevant notebook chunks for a chat turn.
type NoteRetriever interface {
	Retrieve(ctx context.Context, query string, sources []retrieval.SourceRef) ([]retrieval.Scored, error)
}

// Ingestor runs the chunk-embed-store pipeline for a new source.
type Ingestor interface {
	Ingest(ctx context.Context, src storage.Source, text string) ([]storage.Chunk, error)
}

// VideoFetcher resolves a video URL into ingestable text.
type VideoFetcher interface {
	Fetch(ctx context.Context, url, manualText string) (ingest.VideoContent, error)
}

// Executor runs student code in a sandbox.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) (sandbox.Result, error)
}

// Deps wires the handlers to the rest of the service.
type Deps struct {
	Store          *storage.Store
	Generator      Generator
	Retriever      NoteRetriever
	Ingestor       Ingestor
	Videos         VideoFetcher
	Executor       Executor
	Tracker        *gamification.Tracker
	Recommender    *recommend.Recommender
	Token          string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewHandler builds the full HTTP surface. When a token is configured, the
// /api subtree requires it; /health stays open for probes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/chat", handleChat(deps))

		r.Get("/notebook", handleListSources(deps))
		r.Delete("/notebook", handleDeleteSource(deps))
		r.Delete("/notebook/{id}", handleDeleteSource(deps))
		r.Post("/notebook/upload", handleUpload(deps))
		r.Post("/notebook/youtube", handleYouTube(deps))

		r.Get("/wallet", handleListWallet(deps))
		r.Post("/wallet", handleCreateWallet(deps))
		r.Get("/wallet/errors", handleListWalletErrors(deps))
		r.Post("/wallet/errors", handleLogWalletError(deps))
		r.Patch("/wallet/{id}", handlePatchWallet(deps))
		r.Post("/wallet/{id}/resolve", handleResolveWallet(deps))
		r.Delete("/wallet/{id}", handleDeleteWallet(deps))

		r.Post("/execute", handleExecute(deps))
		r.Post("/analyze-error", handleAnalyzeError(deps))
		r.Post("/quiz", handleQuiz(deps))
		r.Get("/recommendations", handleRecommendations(deps))
		r.Get("/stats", handleStats(deps))

		r.Get("/threads", handleListThreads(deps))
		r.Get("/threads/{id}/messages", handleThreadMessages(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// userID resolves the acting user. The UI is single-profile today but the
// data model is already multi-user, so the ID travels in the request.
func userID(r *http.Request) string {
	if id := r.URL.Query().Get("userId"); id != "" {
		return id
	}
	return "default"
}
