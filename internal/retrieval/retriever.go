package retrieval

import (
	"context"
	"fmt"
)

// QueryEmbedder turns a retrieval query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkLoader fetches the stored chunks of a notebook source.
type ChunkLoader interface {
	LoadChunks(ctx context.Context, sourceID string) ([]Candidate, error)
}

// SourceRef names a notebook source selected for a chat turn. Chunks may be
// carried inline by the caller; when present they take precedence over the
// durable copy so a freshly ingested source is usable before any reload.
type SourceRef struct {
	ID     string
	Title  string
	Chunks []Candidate
}

// Retriever finds the notebook chunks most relevant to a query across the
// selected sources.
type Retriever struct {
	embedder QueryEmbedder
	loader   ChunkLoader
	topK     int
}

func NewRetriever(embedder QueryEmbedder, loader ChunkLoader, topK int) *Retriever {
	return &Retriever{embedder: embedder, loader: loader, topK: topK}
}

// Retrieve embeds the query and ranks all chunks of the given sources,
// returning the top-K. Sources with no chunks anywhere contribute nothing;
// having no candidates at all is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, sources []SourceRef) ([]Scored, error) {
	candidates, err := r.gather(ctx, sources)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return Rank(vector, candidates, r.topK), nil
}

func (r *Retriever) gather(ctx context.Context, sources []SourceRef) ([]Candidate, error) {
	var candidates []Candidate
	for _, src := range sources {
		if len(src.Chunks) > 0 {
			for _, c := range src.Chunks {
				c.SourceID = src.ID
				if c.SourceTitle == "" {
					c.SourceTitle = src.Title
				}
				candidates = append(candidates, c)
			}
			continue
		}

		loaded, err := r.loader.LoadChunks(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("loading chunks for source %s: %w", src.ID, err)
		}
		for _, c := range loaded {
			if c.SourceTitle == "" {
				c.SourceTitle = src.Title
			}
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}
