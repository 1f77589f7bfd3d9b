package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nodusapp/sage/internal/composer"
	"github.com/nodusapp/sage/internal/gemini"
	"github.com/nodusapp/sage/internal/retrieval"
	"github.com/nodusapp/sage/internal/storage"
)

// unresolvedErrorLimit caps how many open errors feed the mentoring note.
const unresolvedErrorLimit = 10

type chatRequest struct {
	Message         string       `json:"message"`
	History         []chatTurn   `json:"history"`
	Sources         []chatSource `json:"sources"`
	CodeContext     string       `json:"context"`
	EnableWebSearch bool         `json:"enableWebSearch"`
	UserID          string       `json:"userId"`
	ThreadID        string       `json:"threadId"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatSource struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Chunks []chatChunk `json:"chunks,omitempty"`
}

type chatChunk struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// handleChat is the tutoring endpoint. The model response streams back as
// plain text fragments; the thread ID travels in a header since the body is
// the raw reply. Retrieval and persistence failures degrade the turn rather
// than failing it.
func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		uid := req.UserID
		if uid == "" {
			uid = "default"
		}
		ctx := r.Context()

		var notes []composer.NoteRef
		if deps.Retriever != nil && len(req.Sources) > 0 {
			scored, err := deps.Retriever.Retrieve(ctx, req.Message, toSourceRefs(req.Sources))
			if err != nil {
				deps.Logger.Warn("retrieval failed, answering without notes", "error", err)
			}
			for _, s := range scored {
				notes = append(notes, composer.NoteRef{SourceTitle: s.SourceTitle, Text: s.Text})
			}
		}

		unresolved, err := deps.Store.UnresolvedErrorTitles(ctx, uid, unresolvedErrorLimit)
		if err != nil {
			deps.Logger.Warn("loading unresolved errors failed", "error", err)
		}

		systemPrompt := composer.BuildSystemPrompt(composer.Input{
			CodeContext:      req.CodeContext,
			Notes:            notes,
			UnresolvedErrors: unresolved,
		})
		history := normalizeTurns(req.History, req.Message)

		// The thread record itself is only written once the model produced a
		// reply, so a failed turn leaves no empty thread behind. The ID is
		// minted up front because the header must go out before the body.
		threadID := req.ThreadID
		newThread := threadID == ""
		if newThread {
			threadID = uuid.New().String()
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Thread-Id", threadID)

		var wrote bool
		full, err := deps.Generator.Stream(ctx, systemPrompt, history, req.Message, req.EnableWebSearch,
			func(fragment string) error {
				if _, err := w.Write([]byte(fragment)); err != nil {
					return err
				}
				wrote = true
				flusher.Flush()
				return nil
			})
		if err != nil {
			if !wrote {
				httpError(w, http.StatusBadGateway, "api_error", "model error: %v", err)
				return
			}
			// Client already holds a partial reply; nothing sane to send.
			deps.Logger.Warn("stream aborted mid-reply", "error", err)
		}

		persistTurn(deps, uid, threadID, newThread, req.Message, full)
	}
}

// persistTurn stores the exchange and counts it as learning activity. The
// response has already streamed, so failures here only get logged. The
// suggestion block is stripped before the assistant message is stored; it is
// a transport artifact, not part of the transcript.
func persistTurn(deps Deps, uid, threadID string, newThread bool, userMsg, reply string) {
	if reply == "" {
		return
	}
	ctx, cancel := storageContext()
	defer cancel()

	if newThread {
		if err := deps.Store.CreateThread(ctx, storage.Thread{
			ID: threadID, UserID: uid, Title: threadTitle(userMsg),
		}); err != nil {
			deps.Logger.Warn("creating thread failed", "error", err)
			return
		}
	}

	cleaned, _ := composer.ParseSuggestion(reply)
	now := time.Now().UTC()
	msgs := []storage.ChatMessage{
		{ID: uuid.New().String(), ThreadID: threadID, Role: "user", Content: userMsg, CreatedAt: now},
		{ID: uuid.New().String(), ThreadID: threadID, Role: "assistant", Content: cleaned, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, m := range msgs {
		if err := deps.Store.AddMessage(ctx, m); err != nil {
			deps.Logger.Warn("persisting chat message failed", "thread_id", threadID, "error", err)
			return
		}
	}
	if deps.Tracker != nil {
		deps.Tracker.Record(ctx, uid)
	}
}

// threadTitle derives a thread title from the opening message, truncated on
// rune boundaries so multibyte input stays valid UTF-8.
func threadTitle(s string) string {
	const maxRunes = 60
	r := []rune(s)
	if len(r) > maxRunes {
		return string(r[:maxRunes])
	}
	return s
}

// storageContext detaches persistence from the request context, which may
// already be canceled once the stream ends.
func storageContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func toSourceRefs(sources []chatSource) []retrieval.SourceRef {
	refs := make([]retrieval.SourceRef, 0, len(sources))
	for _, s := range sources {
		ref := retrieval.SourceRef{ID: s.ID, Title: s.Title}
		for _, c := range s.Chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			ref.Chunks = append(ref.Chunks, retrieval.Candidate{Text: c.Text, Embedding: c.Embedding})
		}
		refs = append(refs, ref)
	}
	return refs
}

func normalizeTurns(turns []chatTurn, current string) []gemini.Turn {
	msgs := make([]composer.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, composer.Message{Role: composer.ParseRole(t.Role), Content: t.Content})
	}
	normalized := composer.NormalizeHistory(msgs, current)

	out := make([]gemini.Turn, 0, len(normalized))
	for _, m := range normalized {
		out = append(out, gemini.Turn{Role: string(m.Role), Text: m.Content})
	}
	return out
}
