package services

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/markdave123-py/Syntra/internal/log"
	"github.com/markdave123-py/Syntra/internal/models"
)

type fakeStorage struct {
	uploads map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	s.uploads[key] = data
	return "https://" + bucket + ".s3.us-east-2.amazonaws.com/" + key, nil
}

func (s *fakeStorage) DeleteFile(ctx context.Context, bucket, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	return s.uploads[key], nil
}

func (s *fakeStorage) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, nil
}

type recordingEnqueuer struct {
	ids []string
}

func (e *recordingEnqueuer) Enqueue(sourceID string) { e.ids = append(e.ids, sourceID) }

func sourceFixture(t *testing.T) (*SourceService, *fakeDB, *fakeStorage, *recordingEnqueuer) {
	t.Helper()
	db := newFakeDB()
	db.notebooks["nb-1"] = &models.Notebook{ID: "nb-1", OwnerID: "user-1"}

	storage := newFakeStorage()
	enq := &recordingEnqueuer{}
	svc := NewSourceService(db, storage, NewNotebookService(db), enq, "test-bucket", applog.NewNop())
	return svc, db, storage, enq
}

func TestAddFileUploadsAndEnqueues(t *testing.T) {
	svc, db, storage, enq := sourceFixture(t)

	src, err := svc.AddFile(context.Background(), "user-1", "nb-1", "report.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, models.SourceTypeFile, src.Type)
	assert.Equal(t, models.SourceStatusProcessing, src.Status)
	assert.Contains(t, src.Origin, "test-bucket")
	assert.Contains(t, src.Origin, src.ID)

	require.Len(t, enq.ids, 1)
	assert.Equal(t, src.ID, enq.ids[0])
	assert.NotNil(t, db.sources[src.ID])
	assert.Len(t, storage.uploads, 1)
}

func TestAddFileRejectsForeignNotebook(t *testing.T) {
	svc, _, storage, enq := sourceFixture(t)

	_, err := svc.AddFile(context.Background(), "intruder", "nb-1", "report.pdf", "application/pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, enq.ids)
	assert.Empty(t, storage.uploads)
}

func TestAddURLValidatesScheme(t *testing.T) {
	svc, _, _, enq := sourceFixture(t)

	_, err := svc.AddURL(context.Background(), "user-1", "nb-1", "", "ftp://example.com")
	assert.ErrorIs(t, err, ErrInvalid)

	src, err := svc.AddURL(context.Background(), "user-1", "nb-1", "", "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeURL, src.Type)
	assert.Equal(t, "https://example.com/page", src.Origin)
	assert.Equal(t, "https://example.com/page", src.Title, "title falls back to the URL")
	assert.Len(t, enq.ids, 1)
}

func TestAddTextStoresPayload(t *testing.T) {
	svc, _, storage, enq := sourceFixture(t)

	src, err := svc.AddText(context.Background(), "user-1", "nb-1", "Notes", "some pasted text")
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeText, src.Type)
	assert.Len(t, enq.ids, 1)

	// The payload went to object storage so ingestion fetches it like a file.
	require.Len(t, storage.uploads, 1)
	for _, data := range storage.uploads {
		assert.Equal(t, []byte("some pasted text"), data)
	}

	_, err = svc.AddText(context.Background(), "user-1", "nb-1", "Notes", "   ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteRemovesChunksAndPayload(t *testing.T) {
	svc, _, storage, _ := sourceFixture(t)

	src, err := svc.AddText(context.Background(), "user-1", "nb-1", "Notes", "content")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-1", src.ID))
	require.Len(t, storage.deleted, 1)
	assert.Contains(t, src.Origin, storage.deleted[0])

	// fakeDB soft delete is a no-op, but the call path must not error for
	// url sources either, which have no stored payload.
	url, err := svc.AddURL(context.Background(), "user-1", "nb-1", "", "https://example.com")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), "user-1", url.ID))
	assert.Len(t, storage.deleted, 1, "url sources have no payload to delete")
}
