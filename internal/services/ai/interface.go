// File: internal/services/ai/interface.go
package ai

import "context"

// TurnMessage is one entry of the prompt sent to the model.
type TurnMessage struct {
	Role    string // "system", "user" or "assistant"
	Name    string // optional speaker name for multi-user rooms
	Content string
}

// StreamDelta is one streamed increment. Reasoning-capable models
// interleave reasoning deltas before content deltas; either field may
// be empty in a given frame.
type StreamDelta struct {
	Content   string
	Reasoning string
}

// EmbeddingProvider handles text embeddings.
type EmbeddingProvider interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CompletionProvider handles streamed chat completions.
type CompletionProvider interface {
	StreamCompletion(ctx context.Context, messages []TurnMessage, onDelta func(StreamDelta) error) error
}

// Provider combines embedding and completion capabilities.
type Provider interface {
	EmbeddingProvider
	CompletionProvider
	HealthCheck(ctx context.Context) error
}
