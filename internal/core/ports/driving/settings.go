package driving

import "github.com/custodia-labs/docindex/internal/core/domain"

// SettingsService manages ingestion settings.
type SettingsService interface {
	// Get resolves the current settings: defaults, then the config file,
	// then the environment.
	Get() (*domain.IngestSettings, error)

	// Resolve returns the current settings with overrides, keyed like Set,
	// applied on top. Nothing is persisted.
	Resolve(overrides map[string]string) (*domain.IngestSettings, error)

	// Set validates and persists a single setting by its config key.
	Set(key, value string) error

	// Keys returns the recognised config keys in display order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.IngestSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error
}
