package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Notebook groups sources and conversations for one user. Deleting a
// notebook is a soft delete; sources and chunks stay in place but every
// scoped query filters on deleted_at.
type Notebook struct {
	ID               string     `db:"id" json:"id"`
	OwnerID          string     `db:"owner_id" json:"owner_id"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	MaxContextTokens int        `db:"max_context_tokens" json:"max_context_tokens"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Source lifecycle statuses. A source starts in processing and ends in
// exactly one of completed or failed.
const (
	SourceStatusProcessing = "processing"
	SourceStatusCompleted  = "completed"
	SourceStatusFailed     = "failed"
)

// Source content origins.
const (
	SourceTypeFile = "file"
	SourceTypeURL  = "url"
	SourceTypeText = "text"
)

// Source represents one piece of content added to a notebook: an uploaded
// file, a URL, or pasted text. Origin holds the storage URL for file/text
// sources and the original URL for url sources.
type Source struct {
	ID          string     `db:"id" json:"id"`
	NotebookID  string     `db:"notebook_id" json:"notebook_id"`
	Type        string     `db:"type" json:"type"`
	Title       string     `db:"title" json:"title"`
	Origin      string     `db:"origin" json:"origin"`
	ContentType string     `db:"content_type" json:"content_type"`
	Status      string     `db:"status" json:"status"`
	ErrorReason string     `db:"error_reason" json:"error_reason,omitempty"`
	ChunkCount  int        `db:"chunk_count" json:"chunk_count"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Chunk represents one embedded slice of a source's extracted text.
// ChunkIndex values are contiguous from 0 within a source. NotebookID is
// denormalized so scoped search never needs a join through sources.
type Chunk struct {
	ID         string            `db:"id" json:"id"`
	SourceID   string            `db:"source_id" json:"source_id"`
	NotebookID string            `db:"notebook_id" json:"notebook_id"`
	ChunkIndex int               `db:"chunk_index" json:"chunk_index"`
	Text       string            `db:"text" json:"text"`
	Embedding  []float32         `db:"embedding" json:"-"` // pgvector column
	Metadata   map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// Conversation represents one chat thread in a notebook. SourceID, when
// set, narrows retrieval for the thread to a single source.
type Conversation struct {
	ID         string    `db:"id" json:"id"`
	NotebookID string    `db:"notebook_id" json:"notebook_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	SourceID   string    `db:"source_id" json:"source_id,omitempty"`
	Title      string    `db:"title" json:"title"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Message represents an individual chat message (user or assistant).
// ChunkIDs records which chunks grounded the generation; it is never
// updated after the message is written.
type Message struct {
	ID             string            `db:"id" json:"id"`
	ConversationID string            `db:"conversation_id" json:"conversation_id"`
	Role           string            `db:"role" json:"role"` // "user" or "assistant"
	Content        string            `db:"content" json:"content"`
	ChunkIDs       []string          `db:"chunk_ids" json:"chunk_ids"`
	Metadata       map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}
