package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nodusapp/sage/internal/sandbox"
)

func handleExecute(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req sandbox.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Language == "" || req.Code == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "language and code are required")
			return
		}

		res, err := deps.Executor.Execute(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "execution failed: %v", err)
			return
		}
		if deps.Tracker != nil {
			deps.Tracker.Record(r.Context(), userID(r))
		}
		writeJSON(w, res)
	}
}

type analyzeErrorRequest struct {
	ErrorText string `json:"error"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

// errorAnalysis is the structured breakdown of a runtime or compile error,
// shaped to drop straight into a wallet error entry.
type errorAnalysis struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Category string   `json:"category"`
	Severity string   `json:"severity"`
	Tags     []string `json:"tags"`
}

const analyzeSystemPrompt = `You analyze programming errors for a student's mistake journal. Respond with a single JSON object: {"title": short error name, "summary": what went wrong and how to fix it in plain language, "category": one of "Syntax", "Logic", "Runtime", "Environment", "severity": "low", "medium" or "high", "tags": up to 4 lowercase topic tags}.`

func handleAnalyzeError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req analyzeErrorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.ErrorText) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "error is required")
			return
		}

		var prompt strings.Builder
		prompt.WriteString("Error message:\n" + req.ErrorText)
		if req.Language != "" {
			prompt.WriteString("\n\nLanguage: " + req.Language)
		}
		if req.Code != "" {
			prompt.WriteString("\n\nCode:\n```\n" + req.Code + "\n```")
		}

		analysis := errorAnalysis{
			Title:    firstLine(req.ErrorText, 80),
			Summary:  "Could not analyze this error automatically.",
			Category: "Runtime",
			Severity: "medium",
		}
		raw, err := generateJSONWithRepair(r.Context(), deps.Generator, analyzeSystemPrompt, prompt.String())
		if err != nil {
			// The student still gets a usable journal entry from the raw text.
			deps.Logger.Warn("error analysis failed, using defaults", "error", err)
		} else if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
			deps.Logger.Warn("error analysis returned unparseable payload", "error", err)
		}
		writeJSON(w, analysis)
	}
}

type quizRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type quizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

type quizResponse struct {
	Topic     string         `json:"topic"`
	Questions []quizQuestion `json:"questions"`
}

const quizSystemPrompt = `You write short multiple-choice quizzes for a programming student. Respond with a single JSON object: {"questions": [{"question": text, "options": exactly 4 strings, "correctIndex": 0-3, "explanation": why the answer is correct}]}. No prose outside the JSON.`

func handleQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req quizRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}
		count := req.Count
		if count < 1 || count > 10 {
			count = 5
		}

		raw, err := generateQuiz(r.Context(), deps.Generator, req.Topic, count)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "generating quiz: %v", err)
			return
		}

		var quiz quizResponse
		if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "quiz payload was not valid JSON")
			return
		}
		quiz.Topic = req.Topic
		if len(quiz.Questions) == 0 {
			httpError(w, http.StatusBadGateway, "api_error", "quiz came back empty")
			return
		}
		if deps.Tracker != nil {
			deps.Tracker.Record(r.Context(), userID(r))
		}
		writeJSON(w, quiz)
	}
}

func generateQuiz(ctx context.Context, g Generator, topic string, count int) (string, error) {
	prompt := fmt.Sprintf("Write %d questions about: %s", count, strings.TrimSpace(topic))
	return generateJSONWithRepair(ctx, g, quizSystemPrompt, prompt)
}

// generateJSONWithRepair requests a JSON payload and validates it. Models
// occasionally wrap JSON in markdown fences despite the response type, so
// fences are stripped before validation, and one regeneration is attempted
// before giving up.
func generateJSONWithRepair(ctx context.Context, g Generator, systemPrompt, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := g.GenerateJSON(ctx, systemPrompt, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		cleaned := stripFences(raw)
		if json.Valid([]byte(cleaned)) {
			return cleaned, nil
		}
		lastErr = errInvalidJSONPayload
	}
	return "", lastErr
}

var errInvalidJSONPayload = errors.New("model returned invalid JSON")

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func handleRecommendations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resources, err := deps.Recommender.ForUser(r.Context(), userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "building recommendations: %v", err)
			return
		}
		writeJSON(w, map[string]any{"items": resources})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Tracker.Stats(r.Context(), userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading stats: %v", err)
			return
		}
		writeJSON(w, stats)
	}
}

func firstLine(s string, maxLen int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.TrimSpace(s)
}

