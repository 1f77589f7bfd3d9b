package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
)

// A Turn is one prior exchange in a conversation, carrying the canonical
// role vocabulary ("user" or "assistant"). Mapping to the wire vocabulary
// happens here, at the backend boundary.
type Turn struct {
	Role string
	Text string
}

// StreamHandler receives each text fragment as the model produces it.
type StreamHandler func(fragment string) error

// Generate runs a one-shot completion and returns the full response text.
func (c *Client) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	model := c.api.GenerativeModel(c.genModel)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return flattenResponse(resp)
}

// GenerateJSON runs a one-shot completion constrained to a JSON response.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	model := c.api.GenerativeModel(c.genModel)
	model.GenerationConfig.ResponseMIMEType = "application/json"
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating json content: %w", err)
	}
	return flattenResponse(resp)
}

// Stream sends a message with conversation history and delivers the response
// incrementally through handle. The accumulated full text is returned once
// the stream ends. Cancelling ctx aborts the stream; the configured timeout
// bounds the whole streamed call.
func (c *Client) Stream(ctx context.Context, systemPrompt string, history []Turn, message string, webSearch bool, handle StreamHandler) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	model := c.api.GenerativeModel(c.genModel)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if webSearch {
		model.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}
	}

	session := model.StartChat()
	session.History = toContents(history)

	var full strings.Builder
	iter := session.SendMessageStream(ctx, genai.Text(message))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("streaming content: %w", err)
		}
		fragment := textOf(resp)
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		if err := handle(fragment); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

// ExtractDocumentText asks the generation model to read a raw document (a
// scanned PDF, typically) and return its full text. Used when local text
// extraction comes up empty.
func (c *Client) ExtractDocumentText(ctx context.Context, mimeType string, data []byte) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	model := c.api.GenerativeModel(c.genModel)
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text("Extract every piece of text from this document, in reading order. Respond with the plain text only, no commentary."),
	)
	if err != nil {
		return "", fmt.Errorf("extracting document text: %w", err)
	}
	return flattenResponse(resp)
}

func toContents(history []Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		out = append(out, &genai.Content{
			Role:  wireRole(t.Role),
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return out
}

// wireRole maps the canonical role names onto the vocabulary the backend
// expects. Anything unrecognized is treated as a user turn.
func wireRole(role string) string {
	switch role {
	case "assistant", "model":
		return "model"
	default:
		return "user"
	}
}

func flattenResponse(resp *genai.GenerateContentResponse) (string, error) {
	text := textOf(resp)
	if text == "" {
		return "", errors.New("model returned no text candidates")
	}
	return text, nil
}

func textOf(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
