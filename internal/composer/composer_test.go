package composer

import (
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"user", RoleUser},
		{"ai", RoleAssistant},
		{"assistant", RoleAssistant},
		{"model", RoleAssistant},
		{" AI ", RoleAssistant},
		{"something-else", RoleUser},
		{"", RoleUser},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeHistory(t *testing.T) {
	tests := []struct {
		name    string
		history []Message
		current string
		want    []Message
	}{
		{
			name: "drops trailing duplicate of current message",
			history: []Message{
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
				{RoleUser, "what is a map?"},
			},
			current: "what is a map?",
			want: []Message{
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
			},
		},
		{
			name: "drops leading assistant greeting",
			history: []Message{
				{RoleAssistant, "welcome!"},
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
			},
			current: "next question",
			want: []Message{
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
			},
		},
		{
			name: "merges consecutive same-role turns",
			history: []Message{
				{RoleUser, "part one"},
				{RoleUser, "part two"},
				{RoleAssistant, "answer"},
			},
			current: "next",
			want: []Message{
				{RoleUser, "part one\n\npart two"},
				{RoleAssistant, "answer"},
			},
		},
		{
			name: "drops dangling user turn before the new message",
			history: []Message{
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
				{RoleUser, "unanswered"},
			},
			current: "different question",
			want: []Message{
				{RoleUser, "hi"},
				{RoleAssistant, "hello"},
			},
		},
		{
			name:    "empty history",
			history: nil,
			current: "hi",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHistory(tt.history, tt.current)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%+v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("turn %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeHistory_AlternationInvariant(t *testing.T) {
	history := []Message{
		{RoleAssistant, "a"},
		{RoleAssistant, "b"},
		{RoleUser, "c"},
		{RoleUser, "d"},
		{RoleAssistant, "e"},
		{RoleUser, "f"},
	}
	got := NormalizeHistory(history, "current")
	if len(got) == 0 {
		t.Fatal("expected surviving turns")
	}
	if got[0].Role != RoleUser {
		t.Errorf("first turn role = %q, want user", got[0].Role)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Role == got[i-1].Role {
			t.Errorf("turns %d and %d share role %q", i-1, i, got[i].Role)
		}
	}
	if got[len(got)-1].Role != RoleAssistant {
		t.Errorf("last turn role = %q, want assistant", got[len(got)-1].Role)
	}
}

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	prompt := BuildSystemPrompt(Input{
		CodeContext:      "for i := range xs { }",
		Notes:            []NoteRef{{SourceTitle: "Go Notes", Text: "range copies the element"}},
		UnresolvedErrors: []string{"off-by-one in loop bounds"},
	})

	marks := []string{
		"off-by-one in loop bounds",
		"[Go Notes]",
		":::wallet_suggestion",
		"for i := range xs",
		"You are Sage",
	}
	last := -1
	for _, m := range marks {
		idx := strings.Index(prompt, m)
		if idx < 0 {
			t.Fatalf("prompt missing %q", m)
		}
		if idx < last {
			t.Errorf("section %q appears out of order", m)
		}
		last = idx
	}
}

func TestBuildSystemPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildSystemPrompt(Input{})
	if strings.Contains(prompt, "currently working on this code") {
		t.Error("code section present without code context")
	}
	if strings.Contains(prompt, "excerpts from the student's own notes") {
		t.Error("notes section present without notes")
	}
	if strings.Contains(prompt, "mistake journal") {
		t.Error("errors section present without unresolved errors")
	}
	if !strings.Contains(prompt, ":::wallet_suggestion") {
		t.Error("suggestion protocol must always be present")
	}
}

func TestParseSuggestion(t *testing.T) {
	reply := "Great work!\n\n:::wallet_suggestion {\"type\":\"concept\",\"title\":\"Slices\",\"summary\":\"Views over arrays.\",\"tags\":[\"go\"]}:::"
	cleaned, s := ParseSuggestion(reply)
	if s == nil {
		t.Fatal("expected a suggestion")
	}
	if s.Type != "concept" || s.Title != "Slices" || len(s.Tags) != 1 {
		t.Errorf("unexpected suggestion: %+v", s)
	}
	if cleaned != "Great work!" {
		t.Errorf("cleaned = %q", cleaned)
	}
}

func TestParseSuggestion_ErrorType(t *testing.T) {
	reply := `Done. :::wallet_suggestion {"type":"error","title":"Nil map write","severity":"high"}:::`
	cleaned, s := ParseSuggestion(reply)
	if s == nil {
		t.Fatal("expected a suggestion")
	}
	if s.Type != "error" || s.Severity != "high" {
		t.Errorf("unexpected suggestion: %+v", s)
	}
	if strings.Contains(cleaned, ":::") {
		t.Errorf("block not removed: %q", cleaned)
	}
}

func TestParseSuggestion_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no block", "just a normal reply"},
		{"unterminated", ":::wallet_suggestion {\"type\":\"concept\",\"title\":\"X\"}"},
		{"invalid json", ":::wallet_suggestion {not json}:::"},
		{"unknown type", `:::wallet_suggestion {"type":"badge","title":"X"}:::`},
		{"missing title", `:::wallet_suggestion {"type":"concept","summary":"no title"}:::`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, s := ParseSuggestion(tt.in)
			if s != nil {
				t.Errorf("expected no suggestion, got %+v", s)
			}
			if cleaned != tt.in {
				t.Errorf("text altered: %q", cleaned)
			}
		})
	}
}
