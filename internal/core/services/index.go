package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService provides read access to the vector index and run history.
type IndexService struct {
	index driven.VectorIndex
	runs  driven.RunStore
}

// NewIndexService creates a new index service. The run store is optional.
func NewIndexService(index driven.VectorIndex, runs driven.RunStore) *IndexService {
	return &IndexService{
		index: index,
		runs:  runs,
	}
}

// Info describes the index.
func (s *IndexService) Info(ctx context.Context) (*domain.IndexInfo, error) {
	info, err := s.index.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("index info: %w", err)
	}
	return info, nil
}

// Get retrieves an entry by passage id.
func (s *IndexService) Get(ctx context.Context, id string) (*domain.IndexEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: passage id is required", domain.ErrInvalidInput)
	}
	return s.index.Get(ctx, id)
}

// Recent returns the latest ingestion runs, newest first.
func (s *IndexService) Recent(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}
