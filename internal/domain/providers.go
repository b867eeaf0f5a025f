package domain

import "context"

// LLMProvider is a chat completion backend. Name identifies the provider
// in logs and circuit breaker labels.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}

// EmbeddingProvider turns texts into vectors for the news index. All
// vectors from one provider share the Dimensions width.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
