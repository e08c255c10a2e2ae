// Package openai provides an embedding provider backed by the OpenAI API
// or any endpoint that speaks its embeddings protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
)

// Config holds configuration for the OpenAI embedding provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Dimensions requests shortened vectors from text-embedding-3 models.
	// Zero uses the model's native size.
	Dimensions int
}

// Provider generates embeddings using the OpenAI embeddings endpoint.
type Provider struct {
	client     *openai.Client
	model      string
	dimensions int
	shorten    bool
}

// New creates a new OpenAI embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &Provider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: domain.EmbeddingDimensions()[cfg.Model],
	}
	if cfg.Dimensions > 0 && cfg.Dimensions != p.dimensions {
		p.dimensions = cfg.Dimensions
		p.shorten = true
	}
	return p, nil
}

// EmbedBatch generates one embedding per text in a single request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	if p.shorten {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, toEmbeddingError(err)
	}

	// A short response is returned as-is; the caller checks the count.
	if len(resp.Data) != len(texts) {
		vectors := make([][]float32, 0, len(resp.Data))
		for _, d := range resp.Data {
			vectors = append(vectors, d.Embedding)
		}
		return vectors, nil
	}

	// The API reports each vector's input index; order by it.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, &domain.EmbeddingError{
				Payload: fmt.Sprintf("malformed response: index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
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

// Ping lists models to check the key and endpoint without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return toEmbeddingError(err)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

// toEmbeddingError maps go-openai errors onto EmbeddingError.
func toEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.EmbeddingError{
			StatusCode: apiErr.HTTPStatusCode,
			Payload:    apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.EmbeddingError{
			StatusCode: reqErr.HTTPStatusCode,
			Err:        reqErr.Err,
		}
	}

	return &domain.EmbeddingError{Err: err}
}
