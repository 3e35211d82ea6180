package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/Syntra/internal/models"
)

// ChunkSearch describes one scoped similarity search. NotebookID is the
// outer, non-bypassable boundary; SourceID optionally narrows further.
type ChunkSearch struct {
	NotebookID    string
	SourceID      string // optional; empty means all sources in the notebook
	Vector        []float32
	TopK          int
	MinSimilarity float32
}

// ScoredChunk pairs a chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk      models.Chunk
	Similarity float32
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	Close() error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateNotebook(ctx context.Context, nb *models.Notebook) error
	GetNotebook(ctx context.Context, id string) (*models.Notebook, error)
	ListNotebooksByOwner(ctx context.Context, ownerID string) ([]models.Notebook, error)
	SoftDeleteNotebook(ctx context.Context, id string) error

	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSourcesByNotebook(ctx context.Context, notebookID string) ([]models.Source, error)
	UpdateSourceStatus(ctx context.Context, id string, status string, reason FailureReason) error
	MarkSourceCompleted(ctx context.Context, id string, chunkCount int) error
	SoftDeleteSource(ctx context.Context, id string) error
	SweepStuckSources(ctx context.Context, olderThan time.Duration) (int64, error)

	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	SearchChunks(ctx context.Context, search ChunkSearch) ([]ScoredChunk, error)
	DeleteChunksBySource(ctx context.Context, sourceID string) error

	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversationsByNotebook(ctx context.Context, notebookID string) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
