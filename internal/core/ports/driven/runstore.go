package driven

import (
	"context"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// RunStore persists the ingestion run history.
type RunStore interface {
	// Record saves a finished run. Re-recording a run id overwrites it.
	Record(ctx context.Context, run domain.IngestRun) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.IngestRun, error)
}
