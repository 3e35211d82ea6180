package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Syntra/internal/core"
	applog "github.com/markdave123-py/Syntra/internal/log"
	"github.com/markdave123-py/Syntra/internal/models"
)

// fakeDB is an in-memory core.DbClient covering what the chat and notebook
// services touch.
type fakeDB struct {
	notebooks     map[string]*models.Notebook
	sources       map[string]*models.Source
	conversations map[string]*models.Conversation
	messages      []models.Message
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		notebooks:     map[string]*models.Notebook{},
		sources:       map[string]*models.Source{},
		conversations: map[string]*models.Conversation{},
	}
}

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) CreateUser(ctx context.Context, u *models.User) error { return nil }
func (f *fakeDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (f *fakeDB) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	f.notebooks[nb.ID] = nb
	return nil
}
func (f *fakeDB) GetNotebook(ctx context.Context, id string) (*models.Notebook, error) {
	return f.notebooks[id], nil
}
func (f *fakeDB) ListNotebooksByOwner(ctx context.Context, ownerID string) ([]models.Notebook, error) {
	return nil, nil
}
func (f *fakeDB) SoftDeleteNotebook(ctx context.Context, id string) error {
	delete(f.notebooks, id)
	return nil
}

func (f *fakeDB) CreateSource(ctx context.Context, src *models.Source) error {
	f.sources[src.ID] = src
	return nil
}
func (f *fakeDB) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return f.sources[id], nil
}
func (f *fakeDB) ListSourcesByNotebook(ctx context.Context, notebookID string) ([]models.Source, error) {
	return nil, nil
}
func (f *fakeDB) UpdateSourceStatus(ctx context.Context, id, status string, reason core.FailureReason) error {
	return nil
}
func (f *fakeDB) MarkSourceCompleted(ctx context.Context, id string, chunkCount int) error {
	return nil
}
func (f *fakeDB) SoftDeleteSource(ctx context.Context, id string) error { return nil }
func (f *fakeDB) SweepStuckSources(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeDB) InsertChunks(ctx context.Context, chunks []models.Chunk) error { return nil }
func (f *fakeDB) SearchChunks(ctx context.Context, search core.ChunkSearch) ([]core.ScoredChunk, error) {
	return nil, nil
}
func (f *fakeDB) DeleteChunksBySource(ctx context.Context, sourceID string) error { return nil }

func (f *fakeDB) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	f.conversations[conv.ID] = conv
	return nil
}
func (f *fakeDB) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return f.conversations[id], nil
}
func (f *fakeDB) ListConversationsByNotebook(ctx context.Context, notebookID string) ([]models.Conversation, error) {
	return nil, nil
}
func (f *fakeDB) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.messages = append(f.messages, *msg)
	return nil
}
func (f *fakeDB) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type stubRetriever struct {
	chunks []core.ScoredChunk
	err    error
}

func (r *stubRetriever) Retrieve(ctx context.Context, notebookID, sourceID, query string) ([]core.ScoredChunk, error) {
	return r.chunks, r.err
}

type stubLLM struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
}

func (l *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.lastSystem = systemPrompt
	l.lastUser = userPrompt
	return l.answer, l.err
}

func chatFixture(t *testing.T, retriever Retriever, llm core.LLMProvider) (*ChatService, *fakeDB, string) {
	t.Helper()
	db := newFakeDB()
	db.notebooks["nb-1"] = &models.Notebook{ID: "nb-1", OwnerID: "user-1", MaxContextTokens: 8000}
	db.conversations["conv-1"] = &models.Conversation{ID: "conv-1", NotebookID: "nb-1", UserID: "user-1"}

	notebooks := NewNotebookService(db)
	svc := NewChatService(db, notebooks, retriever, llm, applog.NewNop())
	return svc, db, "conv-1"
}

func TestSendMessageGroundsAnswerInChunks(t *testing.T) {
	retriever := &stubRetriever{chunks: []core.ScoredChunk{
		{Chunk: models.Chunk{ID: "c1", Text: "relevant fact one"}, Similarity: 0.9},
		{Chunk: models.Chunk{ID: "c2", Text: "relevant fact two"}, Similarity: 0.8},
	}}
	llm := &stubLLM{answer: "grounded answer"}
	svc, db, convID := chatFixture(t, retriever, llm)

	msg, err := svc.SendMessage(context.Background(), "user-1", convID, "what are the facts?")
	require.NoError(t, err)

	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "grounded answer", msg.Content)
	assert.Equal(t, []string{"c1", "c2"}, msg.ChunkIDs)
	assert.Equal(t, "false", msg.Metadata["degraded"])

	// The retrieved chunks made it into the prompt.
	assert.Contains(t, llm.lastUser, "relevant fact one")
	assert.Contains(t, llm.lastUser, "what are the facts?")

	// Both turns are persisted, user first.
	require.Len(t, db.messages, 2)
	assert.Equal(t, "user", db.messages[0].Role)
	assert.Equal(t, "assistant", db.messages[1].Role)
}

func TestSendMessageDegradesOnRetrievalFailure(t *testing.T) {
	retriever := &stubRetriever{err: &core.RetrievalError{Err: errors.New("embedder down")}}
	llm := &stubLLM{answer: "ungrounded answer"}
	svc, db, convID := chatFixture(t, retriever, llm)

	msg, err := svc.SendMessage(context.Background(), "user-1", convID, "question")
	require.NoError(t, err, "a retrieval failure must not fail the turn")

	assert.Equal(t, "ungrounded answer", msg.Content)
	assert.Empty(t, msg.ChunkIDs)
	assert.Equal(t, "true", msg.Metadata["degraded"])
	require.Len(t, db.messages, 2)
}

func TestSendMessageEmptyRetrievalIsNotDegraded(t *testing.T) {
	retriever := &stubRetriever{} // no chunks, no error
	llm := &stubLLM{answer: "answer"}
	svc, _, convID := chatFixture(t, retriever, llm)

	msg, err := svc.SendMessage(context.Background(), "user-1", convID, "obscure question")
	require.NoError(t, err)
	assert.Empty(t, msg.ChunkIDs)
	assert.Equal(t, "false", msg.Metadata["degraded"])
}

func TestSendMessageOtherErrorsStillFail(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("plain failure")}
	llm := &stubLLM{answer: "never"}
	svc, db, convID := chatFixture(t, retriever, llm)

	_, err := svc.SendMessage(context.Background(), "user-1", convID, "question")
	require.Error(t, err)
	assert.Empty(t, db.messages)
}

func TestSendMessageRejectsForeignConversation(t *testing.T) {
	retriever := &stubRetriever{}
	llm := &stubLLM{answer: "never"}
	svc, _, convID := chatFixture(t, retriever, llm)

	_, err := svc.SendMessage(context.Background(), "intruder", convID, "question")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendMessageIncludesRecentHistory(t *testing.T) {
	retriever := &stubRetriever{}
	llm := &stubLLM{answer: "answer"}
	svc, db, convID := chatFixture(t, retriever, llm)

	// Seed more turns than the history window holds.
	for i := 0; i < 14; i++ {
		db.messages = append(db.messages, models.Message{
			ConversationID: convID,
			Role:           "user",
			Content:        "turn " + strconv.Itoa(i),
		})
	}

	_, err := svc.SendMessage(context.Background(), "user-1", convID, "latest")
	require.NoError(t, err)

	assert.Contains(t, llm.lastUser, "turn 13")
	assert.NotContains(t, llm.lastUser, "turn 0")
}

func TestCreateConversationValidatesSourceScope(t *testing.T) {
	retriever := &stubRetriever{}
	llm := &stubLLM{}
	svc, db, _ := chatFixture(t, retriever, llm)
	db.sources["src-other"] = &models.Source{ID: "src-other", NotebookID: "nb-other"}

	_, err := svc.CreateConversation(context.Background(), "user-1", "nb-1", "src-other", "t")
	assert.ErrorIs(t, err, ErrInvalid)

	db.sources["src-1"] = &models.Source{ID: "src-1", NotebookID: "nb-1"}
	conv, err := svc.CreateConversation(context.Background(), "user-1", "nb-1", "src-1", "t")
	require.NoError(t, err)
	assert.Equal(t, "src-1", conv.SourceID)
}
