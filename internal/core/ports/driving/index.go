package driving

import (
	"context"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// IndexService exposes read access to the vector index.
type IndexService interface {
	// Info describes the index (location, entry count, dimension, model).
	Info(ctx context.Context) (*domain.IndexInfo, error)

	// Get retrieves a persisted entry by passage id.
	Get(ctx context.Context, id string) (*domain.IndexEntry, error)

	// Recent returns the latest ingestion runs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.IngestRun, error)
}
