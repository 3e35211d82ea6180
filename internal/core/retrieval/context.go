package retrieval

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/models"
)

// retrievalShare is the fraction of the context budget reserved for
// retrieved chunks; the remainder goes to conversation history.
const retrievalShare = 0.7

// Assembled is one deterministic prompt context: the chunk block, the
// history turns that fit, the audit trail of included chunk IDs, and
// whether anything had to be dropped.
type Assembled struct {
	ContextBlock string
	History      []models.Message // chronological, most recent turns kept
	ChunkIDs     []string
	Truncated    bool
	TokensUsed   int
}

// Assemble packs ranked chunks and prior turns into budgetTokens. Chunks go
// in rank order until the next one would exceed the retrieval sub-budget;
// history is kept most-recent-first in the remaining budget and returned in
// chronological order. The same inputs always produce the same output.
func Assemble(chunks []core.ScoredChunk, history []models.Message, budgetTokens int) Assembled {
	if budgetTokens <= 0 {
		budgetTokens = 8000
	}
	chunkBudget := int(float64(budgetTokens) * retrievalShare)

	var (
		out       Assembled
		blocks    []string
		usedChunk int
	)
	for _, sc := range chunks {
		block := fmt.Sprintf("[Chunk %s]: %s", sc.Chunk.ID, sc.Chunk.Text)
		cost := approxTokens(block)
		if usedChunk+cost > chunkBudget {
			out.Truncated = true
			break
		}
		usedChunk += cost
		blocks = append(blocks, block)
		out.ChunkIDs = append(out.ChunkIDs, sc.Chunk.ID)
	}
	out.ContextBlock = strings.Join(blocks, "\n\n")

	// Fill the rest with history, newest first, then restore chronology.
	remaining := budgetTokens - usedChunk
	usedHistory := 0
	var kept []models.Message
	for i := len(history) - 1; i >= 0; i-- {
		cost := approxTokens(history[i].Content)
		if usedHistory+cost > remaining {
			out.Truncated = true
			break
		}
		usedHistory += cost
		kept = append(kept, history[i])
	}
	out.History = make([]models.Message, 0, len(kept))
	for i := len(kept) - 1; i >= 0; i-- {
		out.History = append(out.History, kept[i])
	}

	out.TokensUsed = usedChunk + usedHistory
	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
