package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nodusapp/sage/internal/storage"
)

func handleListThreads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threads, err := deps.Store.ListThreadsByUser(r.Context(), userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing threads: %v", err)
			return
		}
		if threads == nil {
			threads = []storage.Thread{}
		}
		writeJSON(w, threads)
	}
}

func handleThreadMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetThread(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "thread not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading thread: %v", err)
			return
		}

		msgs, err := deps.Store.MessagesByThread(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading messages: %v", err)
			return
		}
		if msgs == nil {
			msgs = []storage.ChatMessage{}
		}
		writeJSON(w, msgs)
	}
}
