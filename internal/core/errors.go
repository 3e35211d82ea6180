package core

import (
	"context"
	"errors"
	"fmt"
)

// FailureReason is the terminal reason recorded on a source when ingestion
// fails. Reasons map one-to-one onto pipeline stages plus the two
// out-of-band causes (cancellation and the stuck-processing sweep).
type FailureReason string

const (
	FailureExtraction FailureReason = "extraction"
	FailureNoContent  FailureReason = "no_content"
	FailureEmbedding  FailureReason = "embedding"
	FailureStorage    FailureReason = "storage"
	FailureCancelled  FailureReason = "cancelled"
	FailureTimeout    FailureReason = "timeout"
)

// ExtractionError reports unreadable, unsupported or empty source content.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extraction failed: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrNoContent is returned when extraction succeeded but chunking produced
// nothing worth indexing.
var ErrNoContent = errors.New("no content to index")

// EmbeddingError reports a provider failure that survived all retries.
// BatchStart/BatchEnd identify the half-open range of input indices whose
// batch failed, so callers know exactly which chunks have no vectors.
type EmbeddingError struct {
	BatchStart int
	BatchEnd   int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for texts [%d,%d): %v", e.BatchStart, e.BatchEnd, e.Err)
}
func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageError reports a persistence failure.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage failed: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// RetrievalError reports that a retrieval attempt could not run at all,
// typically because the query embedding failed. It is distinct from an
// empty result set, which is a valid outcome.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval failed: %v", e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// ReasonForError maps an ingestion error to the failure reason recorded on
// the source. Cancellation wins over the stage classification so a source
// interrupted mid-embed is reported as cancelled, not as a provider fault.
func ReasonForError(err error) FailureReason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCancelled
	}
	var (
		exErr *ExtractionError
		emErr *EmbeddingError
		stErr *StorageError
	)
	switch {
	case errors.As(err, &exErr):
		return FailureExtraction
	case errors.Is(err, ErrNoContent):
		return FailureNoContent
	case errors.As(err, &emErr):
		return FailureEmbedding
	case errors.As(err, &stErr):
		return FailureStorage
	}
	return FailureStorage
}
