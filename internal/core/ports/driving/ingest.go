package driving

import (
	"context"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// IngestService turns a document into durable, verified index entries.
type IngestService interface {
	// Ingest runs the full pipeline for the document at path.
	// The report is always returned, with State Verified or Failed.
	// A failed run also returns the originating error wrapped in a
	// *domain.StageError.
	Ingest(ctx context.Context, path string) (*domain.IngestReport, error)

	// Status returns a snapshot of the current or last run.
	Status() domain.IngestProgress

	// OnProgress registers a callback invoked on every state transition
	// and after every embedded batch.
	OnProgress(fn func(domain.IngestProgress))
}
