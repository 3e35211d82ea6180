package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/models"
)

const defaultMaxContextTokens = 8000

type NotebookService struct {
	db core.DbClient
}

func NewNotebookService(db core.DbClient) *NotebookService {
	return &NotebookService{db: db}
}

func (s *NotebookService) Create(ctx context.Context, ownerID, title, description string, maxContextTokens int) (*models.Notebook, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	nb := &models.Notebook{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Title:            title,
		Description:      description,
		MaxContextTokens: maxContextTokens,
	}
	if err := s.db.CreateNotebook(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

// Get returns the notebook if it exists, is not deleted and belongs to
// userID. Other users' notebooks are indistinguishable from missing ones.
func (s *NotebookService) Get(ctx context.Context, userID, notebookID string) (*models.Notebook, error) {
	nb, err := s.db.GetNotebook(ctx, notebookID)
	if err != nil {
		return nil, err
	}
	if nb == nil || nb.OwnerID != userID {
		return nil, ErrNotFound
	}
	return nb, nil
}

func (s *NotebookService) List(ctx context.Context, userID string) ([]models.Notebook, error) {
	return s.db.ListNotebooksByOwner(ctx, userID)
}

func (s *NotebookService) Delete(ctx context.Context, userID, notebookID string) error {
	if _, err := s.Get(ctx, userID, notebookID); err != nil {
		return err
	}
	return s.db.SoftDeleteNotebook(ctx, notebookID)
}
