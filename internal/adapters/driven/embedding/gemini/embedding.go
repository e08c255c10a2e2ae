// Package gemini provides an embedding provider backed by the Google
// Generative AI API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "embedding-001"

// Config holds configuration for the Gemini embedding provider.
type Config struct {
	// APIKey is the Google API key (required).
	APIKey string

	// Model is the embedding model to use (default: embedding-001).
	Model string

	// Endpoint overrides the API endpoint.
	Endpoint string

	// Dimensions overrides the known model dimension.
	Dimensions int
}

// backend is the slice of the genai client the provider needs.
type backend interface {
	embed(ctx context.Context, texts []string) ([][]float32, error)
	ping(ctx context.Context) error
	close() error
}

// Provider generates embeddings with BatchEmbedContents.
type Provider struct {
	backend    backend
	model      string
	dimensions int
}

// New creates a new Gemini embedding provider.
// No request is made until the first call.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", domain.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %w", domain.ErrConfig, err)
	}

	em := client.EmbeddingModel(cfg.Model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	return newProvider(&genaiBackend{client: client, model: em}, cfg), nil
}

func newProvider(b backend, cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[cfg.Model]
	}
	return &Provider{backend: b, model: cfg.Model, dimensions: dims}
}

// EmbedBatch generates one embedding per text in a single request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := p.backend.embed(ctx, texts)
	if err != nil {
		return nil, toEmbeddingError(err)
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size, zero when unknown.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the name of the embedding model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping fetches the model info, which checks the key without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.backend.ping(ctx); err != nil {
		return toEmbeddingError(err)
	}
	return nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.backend.close()
}

// toEmbeddingError maps Google API errors onto EmbeddingError.
func toEmbeddingError(err error) error {
	var embErr *domain.EmbeddingError
	if errors.As(err, &embErr) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		payload := gerr.Message
		if payload == "" {
			payload = gerr.Body
		}
		return &domain.EmbeddingError{StatusCode: gerr.Code, Payload: payload}
	}

	return &domain.EmbeddingError{Err: err}
}

type genaiBackend struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func (b *genaiBackend) embed(ctx context.Context, texts []string) ([][]float32, error) {
	batch := b.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := b.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			return nil, &domain.EmbeddingError{Payload: "malformed response: missing embedding"}
		}
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

func (b *genaiBackend) ping(ctx context.Context) error {
	_, err := b.model.Info(ctx)
	return err
}

func (b *genaiBackend) close() error {
	return b.client.Close()
}
