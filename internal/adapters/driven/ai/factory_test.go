package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

func TestCreateEmbeddingProvider(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantModel   string
		wantErr     bool
		errContains string
	}{
		{
			name:        "nil settings",
			settings:    nil,
			wantErr:     true,
			errContains: "no embedding provider",
		},
		{
			name:        "unknown provider",
			settings:    &domain.EmbeddingSettings{Provider: "anthropic", Model: "x"},
			wantErr:     true,
			errContains: "unsupported embedding provider",
		},
		{
			name:        "gemini without key",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderGemini, Model: "embedding-001"},
			wantErr:     true,
			errContains: "GOOGLE_API_KEY",
		},
		{
			name:        "openai without key",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small"},
			wantErr:     true,
			errContains: "OPENAI_API_KEY",
		},
		{
			name: "ollama",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
			wantModel: "nomic-embed-text",
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			wantModel: "text-embedding-3-small",
		},
		{
			name: "gemini",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderGemini,
				APIKey:   "test-key",
				Model:    "embedding-001",
			},
			wantModel: "embedding-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := CreateEmbeddingProvider(context.Background(), tt.settings)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrConfig)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, provider)
			defer provider.Close()
			assert.Equal(t, tt.wantModel, provider.ModelName())
		})
	}
}

func TestCreateEmbeddingProvider_DimensionOverride(t *testing.T) {
	provider, err := CreateEmbeddingProvider(context.Background(), &domain.EmbeddingSettings{
		Provider:   domain.AIProviderOllama,
		Model:      "custom-embed",
		Dimensions: 512,
	})
	require.NoError(t, err)

	assert.Equal(t, 512, provider.Dimensions())
}

func TestCreateAndValidateEmbeddingProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := CreateAndValidateEmbeddingProvider(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
		Model:    "nomic-embed-text",
	})

	require.NoError(t, err)
	assert.NoError(t, provider.Close())
}

func TestCreateAndValidateEmbeddingProvider_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider, err := CreateAndValidateEmbeddingProvider(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
		Model:    "nomic-embed-text",
	})

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "ollama unreachable")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}
