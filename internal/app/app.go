// Package app wires adapters to core services. It is the only package that
// knows about every concrete implementation.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docindex/internal/adapters/driven/ai"
	"github.com/custodia-labs/docindex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docindex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
	"github.com/custodia-labs/docindex/internal/core/services"
	"github.com/custodia-labs/docindex/internal/loaders"
	"github.com/custodia-labs/docindex/internal/logger"
	"github.com/custodia-labs/docindex/internal/postprocessors"
)

// Runtime holds the long-lived configuration services.
type Runtime struct {
	Config   *file.ConfigStore
	Settings *services.SettingsService

	// newProvider creates the embedding provider; replaced in tests.
	newProvider func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingProvider, error)
}

// New loads the config file from configDir ("" for ~/.docindex).
func New(configDir string) (*Runtime, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &Runtime{
		Config:      store,
		Settings:    services.NewSettingsService(store, ai.NewConfigValidator()),
		newProvider: ai.CreateEmbeddingProvider,
	}, nil
}

// Session is an open store with the services bound to it.
type Session struct {
	ingest  driving.IngestService
	index   driving.IndexService
	closers []func() error
}

// Ensure Session implements the interface.
var _ driving.StoreSession = (*Session)(nil)

// Ingest returns the ingestion service, nil for read-only sessions.
func (s *Session) Ingest() driving.IngestService { return s.ingest }

// Index returns read access to the store.
func (s *Session) Index() driving.IndexService { return s.index }

// Close releases resources in reverse order of acquisition.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenIndex opens the store at storePath for reading.
func (r *Runtime) OpenIndex(_ context.Context, storePath string) (driving.StoreSession, error) {
	index, runs, closeStore, err := openStore(storePath)
	if err != nil {
		return nil, err
	}

	return &Session{
		index:   services.NewIndexService(index, runs),
		closers: []func() error{closeStore},
	}, nil
}

// OpenIngest builds the full ingestion stack for settings. Invalid settings
// are reported as an Idle-stage error before the store is touched.
func (r *Runtime) OpenIngest(ctx context.Context, settings domain.IngestSettings) (driving.StoreSession, error) {
	if err := settings.Validate(); err != nil {
		return nil, &domain.StageError{Stage: domain.IngestIdle, Err: err}
	}

	pipeline, err := postprocessors.NewDefaultPipeline(settings)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.IngestIdle, Err: err}
	}

	provider, err := r.newProvider(ctx, &settings.Embedding)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.IngestIdle, Err: err}
	}

	index, runs, closeStore, err := openStore(settings.StorePath)
	if err != nil {
		provider.Close()
		return nil, &domain.StageError{Stage: domain.IngestIdle, Err: fmt.Errorf("%w: %w", domain.ErrPersist, err)}
	}

	logger.Debug("store %s, provider %s/%s, chunks %d/%d",
		settings.StorePath, settings.Embedding.Provider, provider.ModelName(),
		settings.ChunkSize, settings.ChunkOverlap)

	return &Session{
		ingest: services.NewIngestOrchestrator(
			settings, loaders.NewDefaultRegistry(), pipeline, provider, index, runs),
		index:   services.NewIndexService(index, runs),
		closers: []func() error{provider.Close, closeStore},
	}, nil
}

// openStore opens the SQLite store at path, or a fresh in-memory index
// for domain.MemoryStorePath.
func openStore(path string) (driven.VectorIndex, driven.RunStore, func() error, error) {
	if path == domain.MemoryStorePath {
		index := memory.NewVectorIndex()
		return index, memory.NewRunStore(), index.Close, nil
	}

	store, err := sqlite.NewStore(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	return store.VectorIndex(), store.RunStore(), store.Close, nil
}
