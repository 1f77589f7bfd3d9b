package composer

import "strings"

// Role is a normalized conversation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn as supplied by the client.
type Message struct {
	Role    Role
	Content string
}

// ParseRole maps the role names clients send to the canonical vocabulary.
// Unknown roles are treated as user turns.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai", "assistant", "model":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// NormalizeHistory prepares client-supplied history for the chat backend,
// which requires the transcript to start with a user turn and strictly
// alternate. It drops a trailing duplicate of the current message, trims
// leading assistant turns, and merges consecutive same-role turns.
func NormalizeHistory(history []Message, current string) []Message {
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.Role == RoleUser && last.Content == current {
			history = history[:len(history)-1]
		}
	}

	start := 0
	for start < len(history) && history[start].Role != RoleUser {
		start++
	}
	history = history[start:]

	var out []Message
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			out[len(out)-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}

	// The new user message follows immediately, so the transcript must end
	// on an assistant turn.
	if len(out) > 0 && out[len(out)-1].Role == RoleUser {
		out = out[:len(out)-1]
	}
	return out
}
