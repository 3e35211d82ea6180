package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/Syntra/internal/config"
	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/models"
)

type DatabaseClient struct {
	db       *sql.DB
	embedDim int
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, embedDim: cfg.EmbedDim}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Notebooks

func (c *DatabaseClient) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	if nb == nil {
		return errors.New("nil notebook")
	}
	const q = `
		INSERT INTO notebooks (id, owner_id, title, description, max_context_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, nb.ID, nb.OwnerID, nb.Title, nb.Description, nb.MaxContextTokens)
	return err
}

func (c *DatabaseClient) GetNotebook(ctx context.Context, id string) (*models.Notebook, error) {
	const q = `
		SELECT id, owner_id, title, description, max_context_tokens, created_at, updated_at
		FROM notebooks
		WHERE id = $1 AND deleted_at IS NULL
	`
	var nb models.Notebook
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&nb.ID, &nb.OwnerID, &nb.Title, &nb.Description, &nb.MaxContextTokens, &nb.CreatedAt, &nb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &nb, nil
}

func (c *DatabaseClient) ListNotebooksByOwner(ctx context.Context, ownerID string) ([]models.Notebook, error) {
	const q = `
		SELECT id, owner_id, title, description, max_context_tokens, created_at, updated_at
		FROM notebooks
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notebook
	for rows.Next() {
		var nb models.Notebook
		if err := rows.Scan(
			&nb.ID, &nb.OwnerID, &nb.Title, &nb.Description, &nb.MaxContextTokens, &nb.CreatedAt, &nb.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// SoftDeleteNotebook marks the notebook deleted. Sources and chunks stay in
// place; every scoped read filters them out through the notebook join.
func (c *DatabaseClient) SoftDeleteNotebook(ctx context.Context, id string) error {
	const q = `
		UPDATE notebooks SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notebook not found: %s", id)
	}
	return nil
}

// Sources

func (c *DatabaseClient) CreateSource(ctx context.Context, src *models.Source) error {
	if src == nil {
		return errors.New("nil source")
	}
	const q = `
		INSERT INTO sources (id, notebook_id, type, title, origin, content_type, status, error_reason, chunk_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', 0, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		src.ID, src.NotebookID, src.Type, src.Title, src.Origin, src.ContentType, src.Status)
	return err
}

func (c *DatabaseClient) GetSource(ctx context.Context, id string) (*models.Source, error) {
	const q = `
		SELECT id, notebook_id, type, title, origin, content_type, status, error_reason, chunk_count, created_at, updated_at
		FROM sources
		WHERE id = $1 AND deleted_at IS NULL
	`
	var s models.Source
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.NotebookID, &s.Type, &s.Title, &s.Origin, &s.ContentType,
		&s.Status, &s.ErrorReason, &s.ChunkCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) ListSourcesByNotebook(ctx context.Context, notebookID string) ([]models.Source, error) {
	const q = `
		SELECT id, notebook_id, type, title, origin, content_type, status, error_reason, chunk_count, created_at, updated_at
		FROM sources
		WHERE notebook_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, notebookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(
			&s.ID, &s.NotebookID, &s.Type, &s.Title, &s.Origin, &s.ContentType,
			&s.Status, &s.ErrorReason, &s.ChunkCount, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSourceStatus records a status transition. Terminal states are
// write-once: a source already completed or failed is never overwritten by
// a stale transition arriving later.
func (c *DatabaseClient) UpdateSourceStatus(ctx context.Context, id string, status string, reason core.FailureReason) error {
	const q = `
		UPDATE sources
		SET status = $2, error_reason = $3, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, status, string(reason))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source not in processing state: %s", id)
	}
	return nil
}

func (c *DatabaseClient) MarkSourceCompleted(ctx context.Context, id string, chunkCount int) error {
	const q = `
		UPDATE sources
		SET status = 'completed', error_reason = '', chunk_count = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, chunkCount)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source not in processing state: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SoftDeleteSource(ctx context.Context, id string) error {
	const q = `
		UPDATE sources SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}

// SweepStuckSources fails any source left in processing beyond olderThan.
func (c *DatabaseClient) SweepStuckSources(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `
		UPDATE sources
		SET status = 'failed', error_reason = 'timeout', updated_at = now()
		WHERE status = 'processing'
		  AND updated_at < now() - ($1 * interval '1 second')
		  AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, int64(olderThan.Seconds()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Chunks

// InsertChunks inserts chunks in a single transaction, all-or-nothing, so a
// source is never left half-indexed. A vector whose length does not match
// the configured dimensionality is rejected before anything is written.
func (c *DatabaseClient) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if len(chunks[i].Embedding) != c.embedDim {
			return fmt.Errorf("chunk %d has vector dimension %d, want %d",
				chunks[i].ChunkIndex, len(chunks[i].Embedding), c.embedDim)
		}
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunks (id, source_id, notebook_id, chunk_index, text, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.SourceID, ch.NotebookID, ch.ChunkIndex, ch.Text, vec, meta,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchChunks finds the top-k most similar chunks above the similarity
// threshold. The notebook scope is enforced in the query itself and joined
// against live notebooks, so no deleted or foreign notebook's chunks can
// ever appear, even when a valid source filter is also supplied.
func (c *DatabaseClient) SearchChunks(ctx context.Context, search core.ChunkSearch) ([]core.ScoredChunk, error) {
	const q = `
		SELECT ch.id, ch.source_id, ch.notebook_id, ch.chunk_index, ch.text, ch.metadata,
		       1 - (ch.embedding <=> $1) AS similarity
		FROM chunks ch
		JOIN notebooks nb ON nb.id = ch.notebook_id AND nb.deleted_at IS NULL
		JOIN sources src ON src.id = ch.source_id AND src.deleted_at IS NULL
		WHERE ch.notebook_id = $2
		  AND ($3::uuid IS NULL OR ch.source_id = $3::uuid)
		  AND 1 - (ch.embedding <=> $1) >= $4
		ORDER BY similarity DESC, ch.chunk_index ASC
		LIMIT $5
	`
	vec := pgvector.NewVector(search.Vector)

	var sourceID any
	if search.SourceID != "" {
		sourceID = search.SourceID
	}

	rows, err := c.db.QueryContext(ctx, q, vec, search.NotebookID, sourceID, search.MinSimilarity, search.TopK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ScoredChunk
	for rows.Next() {
		var (
			sc   core.ScoredChunk
			meta []byte
		)
		if err := rows.Scan(
			&sc.Chunk.ID, &sc.Chunk.SourceID, &sc.Chunk.NotebookID, &sc.Chunk.ChunkIndex,
			&sc.Chunk.Text, &meta, &sc.Similarity,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &sc.Chunk.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChunksBySource(ctx context.Context, sourceID string) error {
	const q = `DELETE FROM chunks WHERE source_id = $1`
	_, err := c.db.ExecContext(ctx, q, sourceID)
	return err
}

// Conversations and messages

func (c *DatabaseClient) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	const q = `
		INSERT INTO conversations (id, notebook_id, user_id, source_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	var sourceID any
	if conv.SourceID != "" {
		sourceID = conv.SourceID
	}
	_, err := c.db.ExecContext(ctx, q, conv.ID, conv.NotebookID, conv.UserID, sourceID, conv.Title)
	return err
}

func (c *DatabaseClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const q = `
		SELECT id, notebook_id, user_id, COALESCE(source_id::text, ''), title, created_at
		FROM conversations
		WHERE id = $1
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&conv.ID, &conv.NotebookID, &conv.UserID, &conv.SourceID, &conv.Title, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *DatabaseClient) ListConversationsByNotebook(ctx context.Context, notebookID string) ([]models.Conversation, error) {
	const q = `
		SELECT id, notebook_id, user_id, COALESCE(source_id::text, ''), title, created_at
		FROM conversations
		WHERE notebook_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, notebookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.NotebookID, &conv.UserID, &conv.SourceID, &conv.Title, &conv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	chunkIDs, err := json.Marshal(msg.ChunkIDs)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO messages (id, conversation_id, role, content, chunk_ids, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	_, err = c.db.ExecContext(ctx, q, msg.ID, msg.ConversationID, msg.Role, msg.Content, chunkIDs, meta)
	return err
}

// ListRecentMessages returns the most recent limit messages in
// chronological order.
func (c *DatabaseClient) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	const q = `
		SELECT id, conversation_id, role, content, chunk_ids, metadata, created_at
		FROM (
			SELECT id, conversation_id, role, content, chunk_ids, metadata, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m        models.Message
			chunkIDs []byte
			meta     []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &chunkIDs, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(chunkIDs) > 0 {
			if err := json.Unmarshal(chunkIDs, &m.ChunkIDs); err != nil {
				return nil, err
			}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
