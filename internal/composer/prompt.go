// Package composer assembles the tutoring prompt for a chat turn and parses
// the structured suggestion block out of model responses.
package composer

import (
	"fmt"
	"strings"
)

const basePersona = `You are Sage, a patient AI coding mentor. Your goal is to help the student genuinely understand programming, not to hand them finished answers.

Guidelines:
- Guide with questions and hints before revealing solutions.
- When the student shares code, reason about what it actually does before suggesting changes.
- Keep explanations concrete; prefer a short example over an abstract description.
- If the student repeats a mistake they have made before, point back to the earlier mistake.`

const suggestionInstruction = `When the student demonstrates solid understanding of a concept, or clearly resolves an error they were stuck on, append exactly one suggestion block as the very last thing in your reply, on its own line:

:::wallet_suggestion {"type":"concept","title":"<short name>","summary":"<one or two sentences>","tags":["<tag>"]}:::

Use "type":"error" with a "severity" of "low", "medium" or "high" for resolved errors. Emit at most one block per reply, and none when nothing was mastered or resolved.`

// NoteRef is a retrieved notebook excerpt included as grounding context.
type NoteRef struct {
	SourceTitle string
	Text        string
}

// Input carries everything a chat turn contributes to the system prompt.
type Input struct {
	CodeContext      string
	Notes            []NoteRef
	UnresolvedErrors []string
}

// BuildSystemPrompt assembles the system prompt for one chat turn. Sections
// stack most-situational first: the open-errors reminder sits topmost, then
// retrieved notes, the suggestion protocol, the code the student is editing,
// and the persona at the base.
func BuildSystemPrompt(in Input) string {
	var sections []string

	if len(in.UnresolvedErrors) > 0 {
		var b strings.Builder
		b.WriteString("The student has unresolved errors in their mistake journal. If the current question relates to any of these, proactively connect it:\n")
		for _, title := range in.UnresolvedErrors {
			b.WriteString("- ")
			b.WriteString(title)
			b.WriteString("\n")
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if len(in.Notes) > 0 {
		var b strings.Builder
		b.WriteString("Relevant excerpts from the student's own notes. Prefer grounding explanations in these:\n")
		for _, n := range in.Notes {
			title := n.SourceTitle
			if title == "" {
				title = "Untitled source"
			}
			fmt.Fprintf(&b, "\n[%s]\n%s\n", title, strings.TrimSpace(n.Text))
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	sections = append(sections, suggestionInstruction)

	if code := strings.TrimSpace(in.CodeContext); code != "" {
		sections = append(sections, "The student is currently working on this code:\n```\n"+code+"\n```")
	}

	sections = append(sections, basePersona)
	return strings.Join(sections, "\n\n")
}
