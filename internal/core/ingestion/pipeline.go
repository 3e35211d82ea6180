// Package ingestion runs the background pipeline that turns a source into
// vector-indexed chunks: extract -> chunk -> embed -> store. Sources are
// processed concurrently by a worker pool, but each source's run is
// strictly sequential and drives a one-directional state machine.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/core/extract"
	"github.com/markdave123-py/Syntra/internal/models"
)

// Store is the slice of persistence the pipeline needs.
type Store interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	UpdateSourceStatus(ctx context.Context, id string, status string, reason core.FailureReason) error
	MarkSourceCompleted(ctx context.Context, id string, chunkCount int) error
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
}

// Fetcher retrieves raw source bytes from object storage.
type Fetcher interface {
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// Extractor turns one source variant into normalized text.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (string, error)
}

// Config tunes the pipeline.
type Config struct {
	ChunkSize    int           // runes per chunk
	ChunkOverlap int           // runes shared between consecutive chunks
	Timeout      time.Duration // hard cap per source run
	QueueSize    int           // pending-job buffer; Enqueue blocks when full
}

func (c *Config) withDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 512
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// Pipeline orchestrates ingestion for all sources.
type Pipeline struct {
	store     Store
	fetcher   Fetcher
	extractor Extractor
	embedder  core.EmbeddingProvider
	cfg       Config
	jobs      chan string
	logger    *slog.Logger
}

func NewPipeline(store Store, fetcher Fetcher, extractor Extractor, embedder core.EmbeddingProvider, cfg Config, logger *slog.Logger) *Pipeline {
	cfg.withDefaults()
	return &Pipeline{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		embedder:  embedder,
		cfg:       cfg,
		jobs:      make(chan string, cfg.QueueSize),
		logger:    logger.With("component", "ingestion"),
	}
}

// Start launches numWorkers goroutines draining the job queue. Workers stop
// when ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					p.logger.Info("worker shutting down", "worker", w)
					return
				case sourceID := <-p.jobs:
					if err := p.ProcessOne(ctx, sourceID); err != nil {
						p.logger.Error("source ingestion failed", "worker", w, "source_id", sourceID, "error", err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a source ID for ingestion. If the queue is full, this
// call blocks until space frees up.
func (p *Pipeline) Enqueue(sourceID string) {
	p.jobs <- sourceID
}

// ProcessOne runs the full pipeline for a single source. Every failure path
// lands the source in failed with a reason; cancellation is recorded as
// failed/cancelled rather than leaving the source stuck in processing.
func (p *Pipeline) ProcessOne(ctx context.Context, sourceID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	src, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source %s: %w", sourceID, err)
	}
	if src == nil {
		return fmt.Errorf("source not found: %s", sourceID)
	}

	fsm := newStateMachine()
	fail := func(err error) error {
		reason := core.ReasonForError(err)
		if ferr := fsm.Fail(reason); ferr != nil {
			// A terminal state was already recorded; keep it.
			p.logger.Warn("ignoring stale failure", "source_id", sourceID, "error", ferr)
			return err
		}
		// Record the terminal state even when the run's context is gone.
		bg := context.WithoutCancel(ctx)
		if uerr := p.store.UpdateSourceStatus(bg, sourceID, models.SourceStatusFailed, reason); uerr != nil {
			p.logger.Error("failed to record failure", "source_id", sourceID, "error", uerr)
		}
		p.logger.Warn("source failed", "source_id", sourceID, "reason", reason, "error", err)
		return err
	}

	// Extract.
	if err := fsm.Advance(StageExtracting); err != nil {
		return err
	}
	in, err := p.inputFor(ctx, src)
	if err != nil {
		return fail(err)
	}
	text, err := p.extractor.Extract(ctx, in)
	if err != nil {
		return fail(err)
	}

	// Chunk.
	if err := fsm.Advance(StageChunking); err != nil {
		return err
	}
	chunks, err := ChunkText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 {
		return fail(core.ErrNoContent)
	}

	// Embed. The client batches internally; order of completion across
	// batches is arbitrary, but the returned vectors are in input order, so
	// ordinal assignment below matches the original chunk sequence.
	if err := fsm.Advance(StageEmbedding); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fail(err)
	}

	// Store, all-or-nothing for the source.
	if err := fsm.Advance(StageStoring); err != nil {
		return err
	}
	rows := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = models.Chunk{
			ID:         uuid.NewString(),
			SourceID:   src.ID,
			NotebookID: src.NotebookID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Embedding:  vecs[i],
			Metadata: map[string]string{
				"start_offset": strconv.Itoa(c.Start),
				"end_offset":   strconv.Itoa(c.End),
			},
		}
	}
	if err := p.store.InsertChunks(ctx, rows); err != nil {
		return fail(&core.StorageError{Err: err})
	}

	if err := fsm.Advance(StageCompleted); err != nil {
		return err
	}
	if err := p.store.MarkSourceCompleted(ctx, sourceID, len(rows)); err != nil {
		return fmt.Errorf("mark completed %s: %w", sourceID, err)
	}
	p.logger.Info("source ingested", "source_id", sourceID, "chunks", len(rows))
	return nil
}

// inputFor builds the extractor input for a source: url sources pass their
// URL through, file and text sources are fetched back from object storage.
func (p *Pipeline) inputFor(ctx context.Context, src *models.Source) (extract.Input, error) {
	switch src.Type {
	case models.SourceTypeURL:
		return extract.URLInput{URL: src.Origin}, nil
	case models.SourceTypeFile, models.SourceTypeText:
		bucket, key := parseStorageURL(src.Origin)
		data, err := p.fetcher.GetFile(ctx, bucket, key)
		if err != nil {
			return nil, &core.ExtractionError{Err: fmt.Errorf("fetch %s: %w", src.Origin, err)}
		}
		if src.Type == models.SourceTypeText {
			return extract.TextInput{Text: string(data)}, nil
		}
		return extract.FileInput{Data: data, ContentType: src.ContentType}, nil
	default:
		return nil, &core.ExtractionError{Err: fmt.Errorf("unknown source type %q", src.Type)}
	}
}

// parseStorageURL extracts the bucket and key from a typical
// virtual-hosted-style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseStorageURL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}
