package driven

import (
	"context"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// VectorIndex durably stores passages with their embeddings.
// Entries are created by Insert and never mutated in place.
type VectorIndex interface {
	// Insert persists one passage and its embedding and returns the entry id.
	// The passage ID is used when set, otherwise a random id is assigned.
	// The write is durable when Insert returns. The first insert fixes the
	// index dimension and later inserts must match it (ErrDimensionMismatch).
	// An existing id fails with ErrAlreadyExists.
	Insert(ctx context.Context, passage domain.Passage, embedding []float32) (string, error)

	// Count returns the total number of persisted entries.
	Count(ctx context.Context) (int, error)

	// CountSource returns the number of entries for one source.
	CountSource(ctx context.Context, sourceID string) (int, error)

	// DeleteSource removes every entry of a source and returns how many were removed.
	DeleteSource(ctx context.Context, sourceID string) (int, error)

	// ReplaceSource removes the entries of a source and inserts the given
	// passages in their place as one atomic write. On error the previous
	// entries are left untouched. Passages without an ID get a random one.
	// The dimension rules of Insert apply to the index as it stands once
	// the previous entries are gone. Returns how many entries were removed.
	ReplaceSource(ctx context.Context, sourceID string, passages []domain.Passage, embeddings [][]float32) (int, error)

	// Get retrieves an entry by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.IndexEntry, error)

	// Search finds the k entries most similar to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error)

	// Info describes the index.
	Info(ctx context.Context) (*domain.IndexInfo, error)

	// SetModel records the embedding model that produces the stored vectors.
	SetModel(ctx context.Context, model string) error

	// Close releases resources.
	Close() error
}
