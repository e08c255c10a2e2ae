// Package ai provides factory functions for creating embedding providers.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/docindex/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/docindex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docindex/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingProvider creates the embedding provider selected by settings.
// An unconfigured provider is an ErrConfig error with guidance.
func CreateEmbeddingProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrConfig)
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfig, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s needs an API key. Set %s or run 'docindex config set embedding.api_key <key>'",
			domain.ErrConfig, settings.Provider, apiKeyEnv(settings.Provider))
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminiembed.New(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			Endpoint:   settings.BaseURL,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderOpenAI:
		return openaiembed.New(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderOllama:
		return ollamaembed.New(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfig, settings.Provider)
	}
}

// CreateAndValidateEmbeddingProvider creates a provider and checks it is reachable.
func CreateAndValidateEmbeddingProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	provider, err := CreateEmbeddingProvider(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := provider.Ping(pingCtx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("%s unreachable: %w", settings.Provider, err)
	}
	return provider, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a
// provider and pinging it. An unconfigured provider is not an error.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	provider, err := CreateAndValidateEmbeddingProvider(context.Background(), settings)
	if err != nil {
		return err
	}
	return provider.Close()
}

func apiKeyEnv(p domain.AIProvider) string {
	switch p {
	case domain.AIProviderGemini:
		return "GOOGLE_API_KEY"
	case domain.AIProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "the API key"
	}
}
