// Package ingest turns uploaded documents and video links into embedded
// notebook chunks.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nodusapp/sage/internal/chunker"
	"github.com/nodusapp/sage/internal/gemini"
	"github.com/nodusapp/sage/internal/storage"
)

// Embedder produces an embedding vector for a chunk of document text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	embedAttempts     = 3
	embedRetryBackoff = time.Second
)

// Pipeline chunks source text, embeds every chunk, and persists the result.
type Pipeline struct {
	store       *storage.Store
	embedder    Embedder
	chunkOpts   chunker.Options
	concurrency int
	logger      *slog.Logger
}

func NewPipeline(store *storage.Store, embedder Embedder, chunkOpts chunker.Options, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		chunkOpts:   chunkOpts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Ingest runs the full pipeline for one source: chunk, embed, store. The
// source record must already exist; on success its chunk count is updated
// and the embedded chunks are returned so callers can serve them without a
// reload. Embedding runs with bounded concurrency and retries rate-limit
// rejections with backoff; any chunk that still fails aborts the whole
// ingest, leaving no partially embedded source behind.
func (p *Pipeline) Ingest(ctx context.Context, src storage.Source, text string) ([]storage.Chunk, error) {
	pieces, err := chunker.Split(text, p.chunkOpts)
	if err != nil {
		return nil, fmt.Errorf("chunking source %s: %w", src.ID, err)
	}
	p.logger.Info("ingesting source",
		"source_id", src.ID, "title", src.Title, "chunks", len(pieces))

	chunks := make([]storage.Chunk, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			vector, err := p.embedWithRetry(gctx, piece)
			if err != nil {
				return fmt.Errorf("embedding chunk %d of source %s: %w", i, src.ID, err)
			}
			chunks[i] = storage.Chunk{
				ID:        fmt.Sprintf("%s_%d", src.ID, i),
				SourceID:  src.ID,
				Index:     i,
				Text:      piece,
				Embedding: vector,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := p.store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("storing chunks for source %s: %w", src.ID, err)
	}
	if err := p.store.UpdateSourceChunkCount(ctx, src.ID, len(chunks)); err != nil {
		return nil, fmt.Errorf("updating chunk count for source %s: %w", src.ID, err)
	}
	return chunks, nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := embedRetryBackoff
	for attempt := 0; attempt < embedAttempts; attempt++ {
		vector, err := p.embedder.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		if !gemini.IsRateLimited(err) {
			return nil, err
		}
		p.logger.Warn("embedding rate limited, backing off",
			"attempt", attempt+1, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}
