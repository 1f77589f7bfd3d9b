package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nodusapp/sage/internal/ingest"
	"github.com/nodusapp/sage/internal/storage"
)

// minExtractedPDFText is the threshold below which a PDF's text layer is
// considered missing and the document is re-read through the model.
const minExtractedPDFText = 100

type sourceResponse struct {
	Source storage.Source `json:"source"`
	Chunks []chatChunk    `json:"chunks"`
}

type sourceListResponse struct {
	Items []sourceResponse `json:"items"`
}

// handleListSources returns each source with its chunks attached, so a
// client can hold them in memory and send them back inline with chat
// requests instead of forcing a durable lookup per turn.
func handleListSources(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := deps.Store.ListSourcesByUser(r.Context(), userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing sources: %v", err)
			return
		}

		resp := sourceListResponse{Items: make([]sourceResponse, 0, len(sources))}
		for _, src := range sources {
			chunks, err := deps.Store.ChunksBySource(r.Context(), src.ID)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "loading chunks for %s: %v", src.ID, err)
				return
			}
			out := make([]chatChunk, 0, len(chunks))
			for _, c := range chunks {
				out = append(out, chatChunk{Text: c.Text, Embedding: c.Embedding})
			}
			resp.Items = append(resp.Items, sourceResponse{Source: src, Chunks: out})
		}
		writeJSON(w, resp)
	}
}

// handleDeleteSource removes a source and all of its chunks, so deleted
// material can no longer surface in retrieval. The ID arrives either as a
// path parameter or as a {"sourceId": ...} body.
func handleDeleteSource(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			var req struct {
				SourceID string `json:"sourceId"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceID == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "sourceId is required")
				return
			}
			id = req.SourceID
		}
		err := deps.Store.DeleteSource(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting source: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes)
		if err := r.ParseMultipartForm(deps.MaxUploadBytes); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing upload: file too large or malformed form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file field is required")
			return
		}
		defer file.Close()

		if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "only PDF files are supported, got %q", ext)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}
		if !ingest.IsPDF(data) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is not a valid PDF")
			return
		}

		text, err := ingest.ExtractPDFText(data)
		if err != nil || len(strings.TrimSpace(text)) < minExtractedPDFText {
			// Scanned PDFs carry no text layer; let the model read the pages.
			ocr, ocrErr := deps.Generator.ExtractDocumentText(r.Context(), "application/pdf", data)
			if ocrErr != nil || strings.TrimSpace(ocr) == "" {
				if err != nil || strings.TrimSpace(text) == "" {
					if ocrErr != nil {
						deps.Logger.Warn("document OCR failed", "file", header.Filename, "error", ocrErr)
					}
					httpError(w, http.StatusBadRequest, "invalid_request_error", "no extractable text in PDF")
					return
				}
				// Short but real text beats a failed OCR pass.
			} else {
				text = ocr
			}
		}

		title := r.FormValue("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}
		src := storage.Source{
			ID:       uuid.New().String(),
			UserID:   formUserID(r),
			Title:    title,
			FileName: header.Filename,
			Type:     "pdf",
		}
		src, _, ok := ingestSource(deps, w, r, src, text)
		if !ok {
			return
		}
		writeJSON(w, uploadResponse{Success: true, Source: src})
	}
}

type uploadResponse struct {
	Success bool           `json:"success"`
	Source  storage.Source `json:"source"`
}

type youtubeRequest struct {
	URL        string `json:"url"`
	ManualText string `json:"manualText"`
	UserID     string `json:"userId"`
}

func handleYouTube(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req youtubeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		video, err := deps.Videos.Fetch(r.Context(), req.URL, req.ManualText)
		if errors.Is(err, ingest.ErrInvalidVideoURL) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "not a recognizable YouTube URL")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "fetching video: %v", err)
			return
		}

		uid := req.UserID
		if uid == "" {
			uid = "default"
		}
		src := storage.Source{
			ID:       uuid.New().String(),
			UserID:   uid,
			Title:    video.Title,
			FileName: video.VideoID,
			Type:     "youtube",
		}
		src, chunks, ok := ingestSource(deps, w, r, src, video.Text)
		if !ok {
			return
		}
		writeJSON(w, sourceResponse{Source: src, Chunks: chunks})
	}
}

// ingestSource persists the source record and runs the pipeline. On failure
// it writes the error response and reports ok=false; a source without chunks
// is unusable, so the record is rolled back.
func ingestSource(deps Deps, w http.ResponseWriter, r *http.Request, src storage.Source, text string) (storage.Source, []chatChunk, bool) {
	ctx := r.Context()
	src.CreatedAt = time.Now().UTC()
	if err := deps.Store.CreateSource(ctx, src); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "saving source: %v", err)
		return src, nil, false
	}

	chunks, err := deps.Ingestor.Ingest(ctx, src, text)
	if err != nil {
		if delErr := deps.Store.DeleteSource(ctx, src.ID); delErr != nil {
			deps.Logger.Warn("cleaning up failed ingest", "source_id", src.ID, "error", delErr)
		}
		httpError(w, http.StatusBadGateway, "api_error", "ingesting source: %v", err)
		return src, nil, false
	}

	src.ChunkCount = len(chunks)
	out := make([]chatChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chatChunk{Text: c.Text, Embedding: c.Embedding})
	}
	if deps.Tracker != nil {
		deps.Tracker.Record(ctx, src.UserID)
	}
	return src, out, true
}

func formUserID(r *http.Request) string {
	if id := r.FormValue("userId"); id != "" {
		return id
	}
	return userID(r)
}
