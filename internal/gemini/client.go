// Package gemini wraps the Google Generative AI client behind the small
// embedding and generation surfaces the rest of the service needs.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client holds a configured Generative AI connection and the model names
// to use for generation and embedding.
type Client struct {
	api        *genai.Client
	genModel   string
	embedModel string
	timeout    time.Duration
}

// New dials the Generative AI backend with the given API key. A positive
// timeout bounds every outbound call made through the client.
func New(ctx context.Context, apiKey, genModel, embedModel string, timeout time.Duration) (*Client, error) {
	api, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{api: api, genModel: genModel, embedModel: embedModel, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.api.Close()
}

// withDeadline derives the per-call context. Callers that already carry a
// shorter deadline keep it; context.WithTimeout never extends one.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
