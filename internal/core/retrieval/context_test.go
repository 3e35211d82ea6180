package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/models"
)

func scored(id, text string) core.ScoredChunk {
	return core.ScoredChunk{Chunk: models.Chunk{ID: id, Text: text}}
}

func TestAssembleKeepsRankOrder(t *testing.T) {
	chunks := []core.ScoredChunk{
		scored("c1", "first chunk"),
		scored("c2", "second chunk"),
		scored("c3", "third chunk"),
	}

	asm := Assemble(chunks, nil, 8000)
	assert.Equal(t, []string{"c1", "c2", "c3"}, asm.ChunkIDs)
	assert.False(t, asm.Truncated)

	// Blocks appear in rank order.
	i1 := strings.Index(asm.ContextBlock, "[Chunk c1]")
	i2 := strings.Index(asm.ContextBlock, "[Chunk c2]")
	i3 := strings.Index(asm.ContextBlock, "[Chunk c3]")
	require.True(t, i1 >= 0 && i2 > i1 && i3 > i2)
}

func TestAssembleIsDeterministic(t *testing.T) {
	chunks := []core.ScoredChunk{
		scored("c1", strings.Repeat("a", 400)),
		scored("c2", strings.Repeat("b", 400)),
	}
	history := []models.Message{
		{Role: "user", Content: "question one"},
		{Role: "assistant", Content: "answer one"},
	}

	first := Assemble(chunks, history, 1000)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Assemble(chunks, history, 1000))
	}
}

func TestAssembleRespectsChunkBudget(t *testing.T) {
	// 1000-token budget leaves 700 for chunks; each chunk costs ~100
	// tokens plus its header, so the eighth chunk cannot fit.
	var chunks []core.ScoredChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, scored("c"+strings.Repeat("x", i+1), strings.Repeat("a", 400)))
	}

	asm := Assemble(chunks, nil, 1000)
	assert.True(t, asm.Truncated)
	assert.Less(t, len(asm.ChunkIDs), 10)
	assert.LessOrEqual(t, asm.TokensUsed, 700)
}

func TestAssembleKeepsMostRecentHistory(t *testing.T) {
	history := []models.Message{
		{Role: "user", Content: strings.Repeat("old ", 300)},
		{Role: "assistant", Content: "middle turn"},
		{Role: "user", Content: "latest question"},
	}

	// Tiny budget: only the newest turns fit in the history share.
	asm := Assemble(nil, history, 40)
	require.NotEmpty(t, asm.History)
	assert.True(t, asm.Truncated)

	// Kept turns are chronological and end with the newest.
	last := asm.History[len(asm.History)-1]
	assert.Equal(t, "latest question", last.Content)
	for _, m := range asm.History {
		assert.NotContains(t, m.Content, "old ")
	}
}

func TestAssembleEmptyInputs(t *testing.T) {
	asm := Assemble(nil, nil, 8000)
	assert.Empty(t, asm.ContextBlock)
	assert.Empty(t, asm.ChunkIDs)
	assert.Empty(t, asm.History)
	assert.False(t, asm.Truncated)
	assert.Zero(t, asm.TokensUsed)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 1, approxTokens("abcd"))
	assert.Equal(t, 2, approxTokens("abcde"))
	// Runes, not bytes.
	assert.Equal(t, 1, approxTokens("日本語"))
}
