package port

import "context"

// AIProvider abstracts the AI backend for text generation and embeddings.
// Implementations can target Gemini, Ollama, or any compatible API. The same
// embedding model must be used for indexing and querying; mixing models
// silently degrades retrieval with no error signal.
type AIProvider interface {
	// ModelName returns the identifier of the generation model being used.
	ModelName() string

	// EmbeddingModelName returns the identifier of the embedding model.
	EmbeddingModelName() string

	// Embed generates a fixed-length vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Generate sends a prompt and returns the complete response text.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream sends a prompt and streams the response token-by-token
	// via channel. The channel is closed when generation finishes or the
	// context is canceled.
	GenerateStream(ctx context.Context, prompt string) (<-chan string, error)
}
