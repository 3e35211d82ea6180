package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/core/retrieval"
	"github.com/markdave123-py/Syntra/internal/models"
)

// historyLimit caps how many prior turns are loaded per message.
const historyLimit = 10

const systemPrompt = "You are a helpful assistant answering questions about the user's notebook. " +
	"Ground your answer in the provided context chunks when they are present. " +
	"If the context does not contain the answer, say so instead of guessing."

// Retriever finds chunks relevant to a query within a notebook scope.
type Retriever interface {
	Retrieve(ctx context.Context, notebookID, sourceID, query string) ([]core.ScoredChunk, error)
}

// ChatService runs retrieval-augmented conversations. Every assistant
// message records the chunk IDs that grounded it; when retrieval itself
// fails the answer is still generated, marked degraded, with no grounding.
type ChatService struct {
	db        core.DbClient
	notebooks *NotebookService
	retriever Retriever
	llm       core.LLMProvider
	logger    *slog.Logger
}

func NewChatService(db core.DbClient, notebooks *NotebookService, retriever Retriever, llm core.LLMProvider, logger *slog.Logger) *ChatService {
	return &ChatService{
		db:        db,
		notebooks: notebooks,
		retriever: retriever,
		llm:       llm,
		logger:    logger.With("component", "chat"),
	}
}

// CreateConversation opens a chat thread in a notebook. A non-empty
// sourceID narrows retrieval for the whole thread to that source.
func (s *ChatService) CreateConversation(ctx context.Context, userID, notebookID, sourceID, title string) (*models.Conversation, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	if sourceID != "" {
		src, err := s.db.GetSource(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		if src == nil || src.NotebookID != notebookID {
			return nil, fmt.Errorf("%w: source not in notebook", ErrInvalid)
		}
	}

	conv := &models.Conversation{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		UserID:     userID,
		SourceID:   sourceID,
		Title:      title,
	}
	if err := s.db.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID, notebookID string) ([]models.Conversation, error) {
	if _, err := s.notebooks.Get(ctx, userID, notebookID); err != nil {
		return nil, err
	}
	return s.db.ListConversationsByNotebook(ctx, notebookID)
}

func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID string, limit int) ([]models.Message, error) {
	if _, err := s.conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.db.ListRecentMessages(ctx, conversationID, limit)
}

// SendMessage runs one retrieval-augmented turn: load recent history,
// retrieve chunks scoped to the conversation, assemble a budgeted context,
// generate, and persist both the user and assistant messages. A retrieval
// failure degrades the turn to ungrounded generation instead of failing it;
// an empty retrieval result is not a failure at all.
func (s *ChatService) SendMessage(ctx context.Context, userID, conversationID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalid)
	}
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	nb, err := s.notebooks.Get(ctx, userID, conv.NotebookID)
	if err != nil {
		return nil, err
	}

	history, err := s.db.ListRecentMessages(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	degraded := false
	chunks, err := s.retriever.Retrieve(ctx, conv.NotebookID, conv.SourceID, content)
	if err != nil {
		var rerr *core.RetrievalError
		if !errors.As(err, &rerr) {
			return nil, err
		}
		s.logger.Warn("retrieval degraded", "conversation_id", conversationID, "error", err)
		degraded = true
		chunks = nil
	}

	asm := retrieval.Assemble(chunks, history, nb.MaxContextTokens)
	answer, err := s.llm.Generate(ctx, systemPrompt, buildUserPrompt(asm, content))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "user",
		Content:        content,
	}
	if err := s.db.InsertMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        answer,
		ChunkIDs:       asm.ChunkIDs,
		Metadata: map[string]string{
			"degraded":    strconv.FormatBool(degraded),
			"truncated":   strconv.FormatBool(asm.Truncated),
			"tokens_used": strconv.Itoa(asm.TokensUsed),
		},
	}
	if err := s.db.InsertMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	s.logger.Info("turn completed",
		"conversation_id", conversationID,
		"chunks", len(asm.ChunkIDs),
		"degraded", degraded,
		"truncated", asm.Truncated)
	return assistantMsg, nil
}

// conversation loads a conversation and checks the caller owns its notebook.
func (s *ChatService) conversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	if _, err := s.notebooks.Get(ctx, userID, conv.NotebookID); err != nil {
		return nil, err
	}
	return conv, nil
}

// buildUserPrompt lays out retrieved context, prior turns and the new
// question in a fixed order so identical inputs produce identical prompts.
func buildUserPrompt(asm retrieval.Assembled, question string) string {
	var b []byte
	if asm.ContextBlock != "" {
		b = append(b, "Context:\n"...)
		b = append(b, asm.ContextBlock...)
		b = append(b, "\n\n"...)
	}
	if len(asm.History) > 0 {
		b = append(b, "Conversation so far:\n"...)
		for _, m := range asm.History {
			b = append(b, m.Role...)
			b = append(b, ": "...)
			b = append(b, m.Content...)
			b = append(b, '\n')
		}
		b = append(b, '\n')
	}
	b = append(b, "Question: "...)
	b = append(b, question...)
	return string(b)
}
