package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nodusapp/sage/internal/storage"
)

type walletCreateRequest struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
	Severity string   `json:"severity"`
	UserID   string   `json:"userId"`
}

func handleListWallet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListWalletItems(r.Context(), userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing wallet: %v", err)
			return
		}
		if items == nil {
			items = []storage.WalletItem{}
		}
		writeJSON(w, items)
	}
}

func handleListWalletErrors(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		items, err := deps.Store.ListErrorItems(r.Context(), userID(r), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing errors: %v", err)
			return
		}
		if items == nil {
			items = []storage.WalletItem{}
		}
		writeJSON(w, items)
	}
}

// handleLogWalletError records a new error item directly, as the sandbox does
// after a failed run. Unspecified fields get the beginner-friendly defaults.
func handleLogWalletError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req walletCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		uid := req.UserID
		if uid == "" {
			uid = userID(r)
		}
		if req.Category == "" {
			req.Category = "Syntax"
		}
		if req.Severity == "" {
			req.Severity = "low"
		}
		item := storage.WalletItem{
			ID:        uuid.New().String(),
			UserID:    uid,
			Type:      storage.WalletError,
			Title:     strings.TrimSpace(req.Title),
			Summary:   req.Summary,
			Tags:      req.Tags,
			Category:  req.Category,
			Severity:  req.Severity,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.CreateWalletItem(r.Context(), item); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving error record: %v", err)
			return
		}

		item.UpdatedAt = item.CreatedAt
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, item)
	}
}

func handleCreateWallet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req walletCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Type != storage.WalletConcept && req.Type != storage.WalletError {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type must be %q or %q", storage.WalletConcept, storage.WalletError)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		uid := req.UserID
		if uid == "" {
			uid = userID(r)
		}
		item := storage.WalletItem{
			ID:        uuid.New().String(),
			UserID:    uid,
			Type:      req.Type,
			Title:     strings.TrimSpace(req.Title),
			Summary:   req.Summary,
			Tags:      req.Tags,
			Category:  req.Category,
			Severity:  req.Severity,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.CreateWalletItem(r.Context(), item); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving wallet item: %v", err)
			return
		}
		if deps.Tracker != nil {
			deps.Tracker.Record(r.Context(), uid)
		}

		item.UpdatedAt = item.CreatedAt
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, item)
	}
}

type walletPatchRequest struct {
	Title    *string  `json:"title"`
	Summary  *string  `json:"summary"`
	Tags     []string `json:"tags"`
	Severity *string  `json:"severity"`
	Resolved *bool    `json:"resolved"`
}

func handlePatchWallet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req walletPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		item, err := deps.Store.UpdateWalletItem(r.Context(), chi.URLParam(r, "id"), storage.WalletItemPatch{
			Title:    req.Title,
			Summary:  req.Summary,
			Tags:     req.Tags,
			Severity: req.Severity,
			Resolved: req.Resolved,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "wallet item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "updating wallet item: %v", err)
			return
		}
		writeJSON(w, item)
	}
}

// handleResolveWallet marks an error as resolved. Resolution is the moment a
// mistake becomes a lesson, so it also counts as learning activity.
func handleResolveWallet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolved := true
		item, err := deps.Store.UpdateWalletItem(r.Context(), chi.URLParam(r, "id"), storage.WalletItemPatch{
			Resolved: &resolved,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "wallet item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving wallet item: %v", err)
			return
		}
		if deps.Tracker != nil {
			deps.Tracker.Record(r.Context(), item.UserID)
		}
		writeJSON(w, item)
	}
}

func handleDeleteWallet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteWalletItem(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "wallet item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting wallet item: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}
