package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateSource inserts a new source record.
func (s *Store) CreateSource(ctx context.Context, src Source) error {
	createdAt := src.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, user_id, title, file_name, type, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.UserID, src.Title, src.FileName, src.Type, src.ChunkCount,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// GetSource returns a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (Source, error) {
	var src Source
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, file_name, type, chunk_count, created_at
		FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.UserID, &src.Title, &src.FileName, &src.Type, &src.ChunkCount, &createdAt)
	if err == sql.ErrNoRows {
		return Source{}, ErrNotFound
	}
	if err != nil {
		return Source{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Source{}, fmt.Errorf("parsing created_at: %w", err)
	}
	src.CreatedAt = t
	return src, nil
}

// ListSourcesByUser returns a user's sources newest first.
func (s *Store) ListSourcesByUser(ctx context.Context, userID string) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, file_name, type, chunk_count, created_at
		FROM sources WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var createdAt string
		if err := rows.Scan(&src.ID, &src.UserID, &src.Title, &src.FileName, &src.Type, &src.ChunkCount, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", src.ID, err)
		}
		src.CreatedAt = t
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// UpdateSourceChunkCount records the number of chunks produced at ingestion.
func (s *Store) UpdateSourceChunkCount(ctx context.Context, id string, count int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sources SET chunk_count = ? WHERE id = ?", count, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSource removes a source and all of its chunks.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}

	res, err := tx.Exec("DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n == 0 {
		tx.Rollback()
		return ErrNotFound
	}

	if _, err := tx.Exec("DELETE FROM chunks WHERE source_id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting chunks for %s: %w", id, err)
	}

	return tx.Commit()
}

// InsertChunks writes a batch of chunks in a single transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (id, source_id, idx, text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		blob := encodeVector(c.Embedding)
		if _, err := stmt.Exec(c.ID, c.SourceID, c.Index, c.Text, blob, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ChunksBySource returns a source's chunks in sequence order, embeddings
// included.
func (s *Store) ChunksBySource(ctx context.Context, sourceID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, idx, text, embedding, created_at
		FROM chunks WHERE source_id = ? ORDER BY idx ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		var createdAt string
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Index, &c.Text, &blob, &createdAt); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		c.Embedding = vec
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
		}
		c.CreatedAt = t
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
