package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateThread inserts a new conversation thread.
func (s *Store) CreateThread(ctx context.Context, th Thread) error {
	now := time.Now().UTC()
	createdAt := th.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := th.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if th.Title == "" {
		th.Title = "New Chat"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, user_id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		th.ID, th.UserID, th.Title, th.Model,
		createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339),
	)
	return err
}

// GetThread returns a thread by ID.
func (s *Store) GetThread(ctx context.Context, id string) (Thread, error) {
	var th Thread
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, model, created_at, updated_at
		FROM threads WHERE id = ?`, id,
	).Scan(&th.ID, &th.UserID, &th.Title, &th.Model, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Thread{}, ErrNotFound
	}
	if err != nil {
		return Thread{}, err
	}
	if th.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Thread{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if th.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Thread{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return th, nil
}

// ListThreadsByUser returns a user's threads, most recently active first.
func (s *Store) ListThreadsByUser(ctx context.Context, userID string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, model, created_at, updated_at
		FROM threads WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var th Thread
		var createdAt, updatedAt string
		if err := rows.Scan(&th.ID, &th.UserID, &th.Title, &th.Model, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if th.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", th.ID, err)
		}
		if th.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", th.ID, err)
		}
		threads = append(threads, th)
	}
	return threads, rows.Err()
}

// UpdateThreadTitle renames a thread.
func (s *Store) UpdateThreadTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE threads SET title = ? WHERE id = ?", title, id)
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

// AddMessage appends a message to a thread and bumps the thread's updated_at.
// Message ordering is append-only; created_at carries the sequence.
func (s *Store) AddMessage(ctx context.Context, msg ChatMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning message transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (id, thread_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.Role, msg.Content, createdAt.Format(time.RFC3339Nano),
	); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec("UPDATE threads SET updated_at = ? WHERE id = ?",
		createdAt.Format(time.RFC3339), msg.ThreadID); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// MessagesByThread returns a thread's messages oldest first.
func (s *Store) MessagesByThread(ctx context.Context, threadID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, role, content, created_at
		FROM messages WHERE thread_id = ? ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", m.ID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
