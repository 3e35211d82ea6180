package core

import "context"

// EmbeddingProvider turns texts into fixed-dimensionality vectors. The
// returned slice always has the same length and order as the input.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
