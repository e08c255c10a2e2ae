package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyChunkSize       = "ingest.chunk_size"
	KeyChunkOverlap    = "ingest.chunk_overlap"
	KeySeparators      = "ingest.separators"
	KeySourcePath      = "ingest.source_path"
	KeyStorePath       = "ingest.store_path"
	KeyBatchSize       = "ingest.batch_size"
	KeyConcurrency     = "ingest.concurrency"
	KeyTimeout         = "ingest.timeout"
	KeyRetries         = "ingest.retries"
	KeyRetryBackoff    = "ingest.retry_backoff"
	KeyRateLimit       = "ingest.rate_limit"
	KeyDuplicatePolicy = "ingest.duplicate_policy"
	KeyEmbedProvider   = "embedding.provider"
	KeyEmbedModel      = "embedding.model"
	KeyEmbedBaseURL    = "embedding.base_url"
	KeyEmbedAPIKey     = "embedding.api_key"
	KeyEmbedDimensions = "embedding.dimensions"
)

// Environment variables that override the config file.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvStorePath    = "DOCINDEX_STORE"
)

// settingKinds maps each recognised key to how its string form is parsed.
var settingKinds = map[string]func(string) (any, error){
	KeyChunkSize:       parseInt,
	KeyChunkOverlap:    parseInt,
	KeySeparators:      parseSeparators,
	KeySourcePath:      parseString,
	KeyStorePath:       parseString,
	KeyBatchSize:       parseInt,
	KeyConcurrency:     parseInt,
	KeyTimeout:         parseDuration,
	KeyRetries:         parseInt,
	KeyRetryBackoff:    parseDuration,
	KeyRateLimit:       parseFloat,
	KeyDuplicatePolicy: parseString,
	KeyEmbedProvider:   parseString,
	KeyEmbedModel:      parseString,
	KeyEmbedBaseURL:    parseString,
	KeyEmbedAPIKey:     parseString,
	KeyEmbedDimensions: parseInt,
}

// keyOrder is the display order for Keys.
var keyOrder = []string{
	KeySourcePath, KeyStorePath, KeyChunkSize, KeyChunkOverlap, KeySeparators,
	KeyBatchSize, KeyConcurrency, KeyTimeout, KeyRetries, KeyRetryBackoff,
	KeyRateLimit, KeyDuplicatePolicy,
	KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey, KeyEmbedDimensions,
}

// SettingsService resolves ingestion settings from defaults, the config
// store and the environment, lowest precedence first.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// The aiValidator is optional.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup, for tests.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	s.lookupEnv = lookup
	return s
}

// Get resolves the current settings. Unrecognised provider or policy
// values fall back to defaults; range checks are left to Validate.
func (s *SettingsService) Get() (*domain.IngestSettings, error) {
	d := domain.DefaultIngestSettings()

	provider := s.getProvider(d.Embedding.Provider)
	settings := &domain.IngestSettings{
		ChunkSize:    s.getInt(KeyChunkSize, d.ChunkSize),
		ChunkOverlap: s.getInt(KeyChunkOverlap, d.ChunkOverlap),
		Separators:   s.getSeparators(d.Separators),
		SourcePath:   s.configStore.GetString(KeySourcePath),
		StorePath:    s.getString(KeyStorePath, d.StorePath),
		Embedding: domain.EmbeddingSettings{
			Provider:   provider,
			Model:      s.getString(KeyEmbedModel, domain.DefaultEmbeddingModel(provider)),
			BaseURL:    s.configStore.GetString(KeyEmbedBaseURL),
			APIKey:     s.configStore.GetString(KeyEmbedAPIKey),
			Dimensions: s.getInt(KeyEmbedDimensions, 0),
		},
		BatchSize:       s.getInt(KeyBatchSize, d.BatchSize),
		Concurrency:     s.getInt(KeyConcurrency, d.Concurrency),
		Retries:         s.getInt(KeyRetries, d.Retries),
		RateLimit:       s.getFloat(KeyRateLimit, d.RateLimit),
		DuplicatePolicy: s.getPolicy(d.DuplicatePolicy),
	}

	var err error
	if settings.Timeout, err = s.getDuration(KeyTimeout, d.Timeout); err != nil {
		return nil, err
	}
	if settings.RetryBackoff, err = s.getDuration(KeyRetryBackoff, d.RetryBackoff); err != nil {
		return nil, err
	}

	s.applyEnv(settings)
	return settings, nil
}

// Set validates and persists a single setting.
func (s *SettingsService) Set(key, value string) error {
	parsed, err := parseSetting(key, value)
	if err != nil {
		return err
	}

	// Validate the combination before writing anything.
	current, err := s.Get()
	if err != nil {
		return err
	}
	candidate := *current
	applySetting(&candidate, key, parsed)
	if err := candidate.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Resolve returns the current settings with overrides applied on top,
// without persisting anything. Overrides are keyed like Set and beat both
// the config file and the environment. Switching provider resets the
// embedding settings to that provider's defaults and environment, unless
// they are overridden too. Range checks are left to Validate.
func (s *SettingsService) Resolve(overrides map[string]string) (*domain.IngestSettings, error) {
	parsed := make(map[string]any, len(overrides))
	for key, value := range overrides {
		v, err := parseSetting(key, value)
		if err != nil {
			return nil, err
		}
		parsed[key] = v
	}

	settings, err := s.Get()
	if err != nil {
		return nil, err
	}

	if v, ok := parsed[KeyEmbedProvider]; ok {
		provider := domain.AIProvider(v.(string))
		if provider != settings.Embedding.Provider {
			settings.Embedding = domain.EmbeddingSettings{
				Provider: provider,
				Model:    domain.DefaultEmbeddingModel(provider),
			}
			s.applyEnv(settings)
		}
	}

	for _, key := range keyOrder {
		if v, ok := parsed[key]; ok {
			applySetting(settings, key, v)
		}
	}
	return settings, nil
}

// Keys returns the recognised config keys in display order.
func (s *SettingsService) Keys() []string {
	return append([]string(nil), keyOrder...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.IngestSettings {
	return domain.DefaultIngestSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// applyEnv overlays environment variables onto settings.
func (s *SettingsService) applyEnv(settings *domain.IngestSettings) {
	if v, ok := s.env(EnvStorePath); ok {
		settings.StorePath = v
	}

	switch settings.Embedding.Provider {
	case domain.AIProviderGemini:
		if v, ok := s.env(EnvGeminiAPIKey); ok {
			settings.Embedding.APIKey = v
		}
		if v, ok := s.env(EnvGoogleAPIKey); ok {
			settings.Embedding.APIKey = v
		}
	case domain.AIProviderOpenAI:
		if v, ok := s.env(EnvOpenAIAPIKey); ok {
			settings.Embedding.APIKey = v
		}
	case domain.AIProviderOllama:
		if v, ok := s.env(EnvOllamaHost); ok {
			settings.Embedding.BaseURL = v
		}
	}
}

// env returns a non-empty environment value.
func (s *SettingsService) env(name string) (string, bool) {
	if s.lookupEnv == nil {
		return "", false
	}
	v, ok := s.lookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// applySetting writes a parsed value into settings.
func applySetting(settings *domain.IngestSettings, key string, value any) {
	switch key {
	case KeyChunkSize:
		settings.ChunkSize = value.(int)
	case KeyChunkOverlap:
		settings.ChunkOverlap = value.(int)
	case KeySeparators:
		settings.Separators = value.([]string)
	case KeySourcePath:
		settings.SourcePath = value.(string)
	case KeyStorePath:
		settings.StorePath = value.(string)
	case KeyBatchSize:
		settings.BatchSize = value.(int)
	case KeyConcurrency:
		settings.Concurrency = value.(int)
	case KeyTimeout:
		settings.Timeout, _ = time.ParseDuration(value.(string))
	case KeyRetries:
		settings.Retries = value.(int)
	case KeyRetryBackoff:
		settings.RetryBackoff, _ = time.ParseDuration(value.(string))
	case KeyRateLimit:
		settings.RateLimit = value.(float64)
	case KeyDuplicatePolicy:
		settings.DuplicatePolicy = domain.DuplicatePolicy(value.(string))
	case KeyEmbedProvider:
		settings.Embedding.Provider = domain.AIProvider(value.(string))
	case KeyEmbedModel:
		settings.Embedding.Model = value.(string)
	case KeyEmbedBaseURL:
		settings.Embedding.BaseURL = value.(string)
	case KeyEmbedAPIKey:
		settings.Embedding.APIKey = value.(string)
	case KeyEmbedDimensions:
		settings.Embedding.Dimensions = value.(int)
	}
}

// parseSetting parses and checks the string form of a setting.
func parseSetting(key, value string) (any, error) {
	parse, ok := settingKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown setting %q", domain.ErrConfig, key)
	}
	parsed, err := parse(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfig, key, err)
	}

	switch key {
	case KeyEmbedProvider:
		if p := domain.AIProvider(value); !p.IsValid() {
			return nil, fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrConfig, value)
		}
	case KeyDuplicatePolicy:
		if p := domain.DuplicatePolicy(value); !p.IsValid() {
			return nil, fmt.Errorf("%w: unknown duplicate policy %q", domain.ErrConfig, value)
		}
	}
	return parsed, nil
}

// Parsers for Set. Durations are stored in their string form.

func parseString(v string) (any, error) {
	return strings.TrimSpace(v), nil
}

func parseInt(v string) (any, error) {
	return strconv.Atoi(strings.TrimSpace(v))
}

func parseFloat(v string) (any, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}

func parseDuration(v string) (any, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

// parseSeparators takes a comma-separated list with Go escapes, e.g.
// `\n\n,\n, ,` for blank line, newline, space and the empty separator.
func parseSeparators(v string) (any, error) {
	parts := strings.Split(v, ",")
	seps := make([]string, 0, len(parts))
	for _, p := range parts {
		unquoted, err := strconv.Unquote(`"` + p + `"`)
		if err != nil {
			return nil, fmt.Errorf("separator %q: %w", p, err)
		}
		seps = append(seps, unquoted)
	}
	return seps, nil
}

// Helper methods for reading config with defaults. A present key wins
// even when its value is zero, so overlap and retries can be set to 0.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrConfig, key, err)
	}
	return d, nil
}

func (s *SettingsService) getSeparators(defaultVal []string) []string {
	if _, exists := s.configStore.Get(KeySeparators); !exists {
		return defaultVal
	}
	seps := s.configStore.GetStringSlice(KeySeparators)
	if len(seps) == 0 {
		return defaultVal
	}
	return seps
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(KeyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getPolicy(defaultVal domain.DuplicatePolicy) domain.DuplicatePolicy {
	policy := domain.DuplicatePolicy(s.configStore.GetString(KeyDuplicatePolicy))
	if !policy.IsValid() {
		return defaultVal
	}
	return policy
}
