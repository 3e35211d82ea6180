package ingestion

import (
	"fmt"
	"strings"
)

// Chunk is the internal representation passed through the pipeline.
//
// Index: stable, zero-based position of the chunk inside the source.
// Start/End: rune offsets of the chunk in the normalized text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// ChunkText splits normalized text into overlapping fixed-size chunks.
// Sizes and offsets are measured in runes: chunk i starts at i*(size-overlap)
// and consecutive chunks share exactly overlap runes. Whitespace-only chunks
// are dropped and the remaining indices renumbered so they stay contiguous
// from 0. Empty input yields an empty slice.
func ChunkText(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", overlap, size)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  content,
				Start: start,
				End:   end,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
