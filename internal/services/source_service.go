package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/models"
)

// Enqueuer hands a source ID to the ingestion pipeline.
type Enqueuer interface {
	Enqueue(sourceID string)
}

// SourceService creates sources, persists their raw payloads and schedules
// them for ingestion. Processing itself happens in the background; callers
// poll the source status.
type SourceService struct {
	db        core.DbClient
	storage   core.ObjectClient
	notebooks *NotebookService
	pipeline  Enqueuer
	bucket    string
	logger    *slog.Logger
}

func NewSourceService(db core.DbClient, storage core.ObjectClient, notebooks *NotebookService, pipeline Enqueuer, bucket string, logger *slog.Logger) *SourceService {
	return &SourceService{
		db:        db,
		storage:   storage,
		notebooks: notebooks,
		pipeline:  pipeline,
		bucket:    bucket,
		logger:    logger.With("component", "sources"),
	}
}

// AddFile uploads a file payload and registers it as a processing source.
func (s *SourceService) AddFile(ctx context.Context, userID, notebookID, filename, contentType string, data []byte) (*models.Source, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalid)
	}

	srcID := uuid.NewString()
	key := s.objectKey(notebookID, srcID, filename)
	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload payload: %w", err)
	}

	return s.create(ctx, &models.Source{
		ID:          srcID,
		NotebookID:  notebookID,
		Type:        models.SourceTypeFile,
		Title:       filename,
		Origin:      url,
		ContentType: contentType,
		Status:      models.SourceStatusProcessing,
	})
}

// AddURL registers a web page as a processing source. The page is fetched
// by the pipeline, not here.
func (s *SourceService) AddURL(ctx context.Context, userID, notebookID, title, pageURL string) (*models.Source, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, fmt.Errorf("%w: url must be http(s)", ErrInvalid)
	}
	if title == "" {
		title = pageURL
	}

	return s.create(ctx, &models.Source{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Type:       models.SourceTypeURL,
		Title:      title,
		Origin:     pageURL,
		Status:     models.SourceStatusProcessing,
	})
}

// AddText stores pasted text in object storage and registers it as a
// processing source, so text goes through the same pipeline path as files.
func (s *SourceService) AddText(ctx context.Context, userID, notebookID, title, text string) (*models.Source, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalid)
	}
	if title == "" {
		title = "Pasted text"
	}

	srcID := uuid.NewString()
	key := s.objectKey(notebookID, srcID, "content.txt")
	url, err := s.storage.UploadFile(ctx, s.bucket, key, []byte(text), "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("upload payload: %w", err)
	}

	return s.create(ctx, &models.Source{
		ID:          srcID,
		NotebookID:  notebookID,
		Type:        models.SourceTypeText,
		Title:       title,
		Origin:      url,
		ContentType: "text/plain",
		Status:      models.SourceStatusProcessing,
	})
}

func (s *SourceService) create(ctx context.Context, src *models.Source) (*models.Source, error) {
	if err := s.db.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	s.pipeline.Enqueue(src.ID)
	s.logger.Info("source enqueued", "source_id", src.ID, "notebook_id", src.NotebookID, "type", src.Type)
	return src, nil
}

// Get returns a source after checking the caller owns its notebook.
func (s *SourceService) Get(ctx context.Context, userID, sourceID string) (*models.Source, error) {
	src, err := s.db.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNotFound
	}
	if _, err := s.notebooks.Get(ctx, userID, src.NotebookID); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *SourceService) ListByNotebook(ctx context.Context, userID, notebookID string) ([]models.Source, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	return s.db.ListSourcesByNotebook(ctx, notebookID)
}

// Delete removes a source's chunks immediately (so retrieval can never see
// them again), best-effort deletes the stored payload, then soft-deletes
// the source row.
func (s *SourceService) Delete(ctx context.Context, userID, sourceID string) error {
	src, err := s.Get(ctx, userID, sourceID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteChunksBySource(ctx, sourceID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if src.Type == models.SourceTypeFile || src.Type == models.SourceTypeText {
		bucket, key := parseOriginURL(src.Origin)
		if err := s.storage.DeleteFile(ctx, bucket, key); err != nil {
			s.logger.Warn("payload delete failed", "source_id", sourceID, "error", err)
		}
	}

	return s.db.SoftDeleteSource(ctx, sourceID)
}

// objectKey creates a consistent storage key layout.
func (s *SourceService) objectKey(notebookID, sourceID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("notebooks", notebookID, "sources", sourceID, filename)
}

// parseOriginURL extracts bucket and key from a virtual-hosted-style URL.
func parseOriginURL(u string) (bucket, key string) {
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
