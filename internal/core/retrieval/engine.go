// Package retrieval answers "what stored content is relevant to this
// query": it embeds the query, runs a scoped similarity search, and
// assembles the winning chunks plus conversation history into a
// token-budgeted prompt context.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/Syntra/internal/core"
)

// Searcher is the slice of persistence the engine needs.
type Searcher interface {
	SearchChunks(ctx context.Context, search core.ChunkSearch) ([]core.ScoredChunk, error)
}

// Engine embeds queries and retrieves ranked chunks scoped to a notebook
// and optionally a single source.
type Engine struct {
	searcher      Searcher
	embedder      core.EmbeddingProvider
	topK          int
	minSimilarity float32
	logger        *slog.Logger
}

func NewEngine(searcher Searcher, embedder core.EmbeddingProvider, topK int, minSimilarity float64, logger *slog.Logger) *Engine {
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		searcher:      searcher,
		embedder:      embedder,
		topK:          topK,
		minSimilarity: float32(minSimilarity),
		logger:        logger.With("component", "retrieval"),
	}
}

// Retrieve returns ranked chunks for the query. An empty result is a valid
// outcome (the caller falls back to ungrounded generation); a failure to
// embed the query is a RetrievalError and must not be mistaken for it.
func (e *Engine) Retrieve(ctx context.Context, notebookID, sourceID, query string) ([]core.ScoredChunk, error) {
	vecs, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, &core.RetrievalError{Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(vecs) != 1 {
		return nil, &core.RetrievalError{Err: fmt.Errorf("embed query: got %d vectors", len(vecs))}
	}

	results, err := e.searcher.SearchChunks(ctx, core.ChunkSearch{
		NotebookID:    notebookID,
		SourceID:      sourceID,
		Vector:        vecs[0],
		TopK:          e.topK,
		MinSimilarity: e.minSimilarity,
	})
	if err != nil {
		return nil, &core.RetrievalError{Err: fmt.Errorf("search chunks: %w", err)}
	}

	e.logger.Debug("retrieval done", "notebook_id", notebookID, "source_id", sourceID, "results", len(results))
	return results, nil
}
