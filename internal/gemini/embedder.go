package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// Embed returns the embedding vector for a piece of document text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	em := c.api.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingUnavailable)
	}
	return res.Embedding.Values, nil
}

// EmbedQuery embeds a retrieval query. The backend treats queries and
// documents identically, so this is an alias kept for call-site clarity.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text)
}
