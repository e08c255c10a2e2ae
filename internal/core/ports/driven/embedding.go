package driven

import "context"

// EmbeddingProvider generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores vectors.
// EmbeddingProvider generates vectors; VectorIndex stores them.
//
// Implementations include:
//   - Google Generative AI (embedding-001, text-embedding-004)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingProvider interface {
	// EmbedBatch generates one embedding per text, in input order.
	// Provider failures are returned as *domain.EmbeddingError.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536).
	// This is determined by the model and must match the VectorIndex.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
