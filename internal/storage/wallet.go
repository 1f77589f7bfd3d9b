package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateWalletItem inserts a new wallet record.
func (s *Store) CreateWalletItem(ctx context.Context, item WalletItem) error {
	now := time.Now().UTC()
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := item.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	tags, err := marshalTags(item.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallet_items (id, user_id, type, title, summary, tags, category, severity, resolved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Type, item.Title, item.Summary, tags,
		item.Category, item.Severity, boolToInt(item.Resolved),
		createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339),
	)
	return err
}

// GetWalletItem returns a wallet record by ID.
func (s *Store) GetWalletItem(ctx context.Context, id string) (WalletItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, title, summary, tags, category, severity, resolved, created_at, updated_at
		FROM wallet_items WHERE id = ?`, id)
	item, err := scanWalletItem(row.Scan)
	if err == sql.ErrNoRows {
		return WalletItem{}, ErrNotFound
	}
	return item, err
}

// ListWalletItems returns a user's wallet records newest first.
func (s *Store) ListWalletItems(ctx context.Context, userID string) ([]WalletItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, summary, tags, category, severity, resolved, created_at, updated_at
		FROM wallet_items WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWalletItems(rows)
}

// ListErrorItems returns a user's most recent error records, capped at limit.
func (s *Store) ListErrorItems(ctx context.Context, userID string, limit int) ([]WalletItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, summary, tags, category, severity, resolved, created_at, updated_at
		FROM wallet_items WHERE user_id = ? AND type = ?
		ORDER BY created_at DESC LIMIT ?`, userID, WalletError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWalletItems(rows)
}

// UnresolvedErrorTitles returns titles of the user's unresolved error records,
// newest first, capped at limit. Used for proactive mentoring context.
func (s *Store) UnresolvedErrorTitles(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM wallet_items
		WHERE user_id = ? AND type = ? AND resolved = 0
		ORDER BY created_at DESC LIMIT ?`, userID, WalletError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// WalletItemPatch holds the mutable fields of a wallet record. Nil fields are
// left unchanged.
type WalletItemPatch struct {
	Title    *string
	Summary  *string
	Tags     []string
	Severity *string
	Resolved *bool
}

// UpdateWalletItem applies a patch to an existing record. Writes are
// last-write-wins; no application-level locking is performed.
func (s *Store) UpdateWalletItem(ctx context.Context, id string, patch WalletItemPatch) (WalletItem, error) {
	item, err := s.GetWalletItem(ctx, id)
	if err != nil {
		return WalletItem{}, err
	}

	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Summary != nil {
		item.Summary = *patch.Summary
	}
	if patch.Tags != nil {
		item.Tags = patch.Tags
	}
	if patch.Severity != nil {
		item.Severity = *patch.Severity
	}
	if patch.Resolved != nil {
		item.Resolved = *patch.Resolved
	}
	item.UpdatedAt = time.Now().UTC()

	tags, err := marshalTags(item.Tags)
	if err != nil {
		return WalletItem{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE wallet_items SET title = ?, summary = ?, tags = ?, severity = ?, resolved = ?, updated_at = ?
		WHERE id = ?`,
		item.Title, item.Summary, tags, item.Severity, boolToInt(item.Resolved),
		item.UpdatedAt.Format(time.RFC3339), id,
	)
	if err != nil {
		return WalletItem{}, err
	}
	return item, nil
}

// DeleteWalletItem removes a wallet record.
func (s *Store) DeleteWalletItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM wallet_items WHERE id = ?", id)
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

func collectWalletItems(rows *sql.Rows) ([]WalletItem, error) {
	var items []WalletItem
	for rows.Next() {
		item, err := scanWalletItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanWalletItem(scan func(...any) error) (WalletItem, error) {
	var item WalletItem
	var tags, createdAt, updatedAt string
	var resolved int
	if err := scan(&item.ID, &item.UserID, &item.Type, &item.Title, &item.Summary,
		&tags, &item.Category, &item.Severity, &resolved, &createdAt, &updatedAt); err != nil {
		return WalletItem{}, err
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return WalletItem{}, fmt.Errorf("parsing tags for %s: %w", item.ID, err)
	}
	item.Resolved = resolved != 0

	var err error
	if item.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return WalletItem{}, fmt.Errorf("parsing created_at for %s: %w", item.ID, err)
	}
	if item.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return WalletItem{}, fmt.Errorf("parsing updated_at for %s: %w", item.ID, err)
	}
	return item, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshalling tags: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
