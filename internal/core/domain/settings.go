package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Default ingestion settings.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultStorePath    = "./docindex_db"
	DefaultBatchSize    = 32
	DefaultConcurrency  = 1
	DefaultTimeout      = 30 * time.Second
	DefaultRetryBackoff = time.Second
)

// MemoryStorePath selects the in-memory vector index instead of a directory.
const MemoryStorePath = ":memory:"

// DefaultSeparators are tried from coarsest to finest.
// The empty separator splits between any two characters.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}
}

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderGemini is the Google Generative AI API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Google Generative AI (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// DefaultEmbeddingModel returns the default model for a provider.
func DefaultEmbeddingModel(p AIProvider) string {
	switch p {
	case AIProviderGemini:
		return "embedding-001"
	case AIProviderOpenAI:
		return "text-embedding-3-small"
	case AIProviderOllama:
		return "nomic-embed-text"
	default:
		return ""
	}
}

// EmbeddingDimensions returns known dimensions for common embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Google
		"embedding-001":        768,
		"models/embedding-001": 768,
		"text-embedding-004":   768,
		// OpenAI
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Ollama
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	}
}

// DuplicatePolicy decides what re-ingesting an indexed source does.
type DuplicatePolicy string

// Available duplicate policies.
const (
	// PolicyReplace removes the source's previous entries and inserts
	// entries with content-derived ids. Re-running is idempotent.
	PolicyReplace DuplicatePolicy = "replace"

	// PolicyAppend inserts new entries with random ids alongside any
	// existing ones.
	PolicyAppend DuplicatePolicy = "append"
)

// IsValid returns true if the policy is recognised.
func (p DuplicatePolicy) IsValid() bool {
	return p == PolicyReplace || p == PolicyAppend
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model identifier.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions overrides the model's known dimensionality.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Model == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns the override or the known model dimension.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// IngestSettings is the full configuration of an ingestion run.
type IngestSettings struct {
	// ChunkSize is the maximum passage length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive passages.
	ChunkOverlap int

	// Separators are the chunk boundaries, coarsest first.
	Separators []string

	// SourcePath is the document to ingest.
	SourcePath string

	// StorePath is the vector index directory.
	StorePath string

	// Embedding configures the embedding provider.
	Embedding EmbeddingSettings

	// BatchSize is the number of passages per embedding call.
	BatchSize int

	// Concurrency is the number of embedding calls in flight.
	Concurrency int

	// Timeout bounds each embedding call.
	Timeout time.Duration

	// Retries is how many times a failed embedding batch is retried.
	Retries int

	// RetryBackoff is the delay before the first retry, growing linearly.
	RetryBackoff time.Duration

	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64

	// DuplicatePolicy decides what re-ingesting a source does.
	DuplicatePolicy DuplicatePolicy
}

// DefaultIngestSettings returns settings with all defaults applied.
func DefaultIngestSettings() IngestSettings {
	return IngestSettings{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators(),
		StorePath:    DefaultStorePath,
		Embedding: EmbeddingSettings{
			Provider: AIProviderGemini,
			Model:    DefaultEmbeddingModel(AIProviderGemini),
		},
		BatchSize:       DefaultBatchSize,
		Concurrency:     DefaultConcurrency,
		Timeout:         DefaultTimeout,
		RetryBackoff:    DefaultRetryBackoff,
		DuplicatePolicy: PolicyReplace,
	}
}

// ValidateChunking checks the chunk parameters alone.
func (s IngestSettings) ValidateChunking() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrConfig, s.ChunkSize)
	}
	if s.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrConfig, s.ChunkOverlap)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrConfig, s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

// Validate checks the settings and returns an ErrConfig-wrapped error.
func (s IngestSettings) Validate() error {
	if err := s.ValidateChunking(); err != nil {
		return err
	}
	if s.StorePath == "" {
		return fmt.Errorf("%w: store_path is required", ErrConfig)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrConfig, s.BatchSize)
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrConfig, s.Concurrency)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrConfig)
	}
	if s.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrConfig, s.Retries)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrConfig)
	}
	if !s.DuplicatePolicy.IsValid() {
		return fmt.Errorf("%w: unknown duplicate policy %q", ErrConfig, s.DuplicatePolicy)
	}
	return nil
}
