package composer

import (
	"encoding/json"
	"strings"
)

const (
	suggestionOpen  = ":::wallet_suggestion"
	suggestionClose = ":::"
)

// Suggestion is the structured payload the model may append to a reply,
// proposing a wallet entry for the student.
type Suggestion struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`
	Severity string   `json:"severity,omitempty"`
}

func (s *Suggestion) valid() bool {
	if s.Title == "" {
		return false
	}
	return s.Type == "concept" || s.Type == "error"
}

// ParseSuggestion extracts a trailing suggestion block from a model reply.
// It returns the reply with the block removed and the parsed suggestion, or
// the original text and nil when no well-formed block is present. A block
// that fails to parse or validate is left in place untouched; mangling the
// reply over a malformed payload would be worse than showing it.
func ParseSuggestion(text string) (string, *Suggestion) {
	start := strings.LastIndex(text, suggestionOpen)
	if start < 0 {
		return text, nil
	}

	rest := text[start+len(suggestionOpen):]
	end := strings.Index(rest, suggestionClose)
	if end < 0 {
		return text, nil
	}

	payload := strings.TrimSpace(rest[:end])
	var s Suggestion
	if err := json.Unmarshal([]byte(payload), &s); err != nil || !s.valid() {
		return text, nil
	}

	cleaned := text[:start] + rest[end+len(suggestionClose):]
	return strings.TrimRight(cleaned, " \n\t"), &s
}
