package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Source is an ingested notebook document: an uploaded PDF or a linked video.
// Immutable after ingestion except for deletion.
type Source struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	Type       string    `json:"type"` // "pdf", "text" or "youtube"
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Chunk is one overlapping window of a source's extracted text together with
// its embedding. Chunks are written once at ingestion and never mutated.
type Chunk struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"sourceId"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"-"`
}

// WalletItem is a durable knowledge-vault record: a saved concept or a
// diagnosed error. Error items additionally carry severity, category and a
// resolution flag.
type WalletItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"` // "concept" or "error"
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Category  string    `json:"category,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Wallet item types.
const (
	WalletConcept = "concept"
	WalletError   = "error"
)

// Thread is one persisted conversation.
type Thread struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is one turn in a thread. Role is "user" or "assistant".
type ChatMessage struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStats holds per-user gamification state. ActivityMap is keyed by
// calendar date ("2006-01-02").
type UserStats struct {
	UserID           string         `json:"userId"`
	CurrentStreak    int            `json:"currentStreak"`
	LastActivityDate string         `json:"lastActivityDate"`
	TotalActivities  int            `json:"totalActivities"`
	ActivityMap      map[string]int `json:"activityMap"`
}
