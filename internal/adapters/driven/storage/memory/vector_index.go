package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docindex/internal/adapters/driven/storage/vectormath"
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// It holds entries in insertion order and is lost on exit.
type VectorIndex struct {
	mu         sync.RWMutex
	entries    map[string]domain.IndexEntry
	order      []string
	dimensions int
	model      string
	now        func() time.Time
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		entries: make(map[string]domain.IndexEntry),
		now:     time.Now,
	}
}

// Insert stores a passage with its embedding.
func (v *VectorIndex) Insert(_ context.Context, passage domain.Passage, embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", fmt.Errorf("%w: empty embedding", domain.ErrInvalidInput)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dimensions != 0 && v.dimensions != len(embedding) {
		return "", fmt.Errorf("%w: index has %d dimensions, got %d",
			domain.ErrDimensionMismatch, v.dimensions, len(embedding))
	}

	id := passage.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := v.entries[id]; exists {
		return "", fmt.Errorf("%w: passage %s", domain.ErrAlreadyExists, id)
	}

	v.dimensions = len(embedding)
	v.entries[id] = domain.IndexEntry{
		PassageID:     id,
		Text:          passage.Text,
		Metadata:      passage.Metadata,
		SequenceIndex: passage.SequenceIndex,
		OverlapLen:    passage.OverlapLen,
		Oversized:     passage.Oversized,
		Embedding:     slices.Clone(embedding),
		CreatedAt:     v.now(),
	}
	v.order = append(v.order, id)
	return id, nil
}

// Count returns the total number of entries.
func (v *VectorIndex) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries), nil
}

// CountSource returns the number of entries for one source.
func (v *VectorIndex) CountSource(_ context.Context, sourceID string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	n := 0
	for _, e := range v.entries {
		if e.Metadata.SourceID == sourceID {
			n++
		}
	}
	return n, nil
}

// DeleteSource removes all entries of a source.
func (v *VectorIndex) DeleteSource(_ context.Context, sourceID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := v.order[:0]
	removed := 0
	for _, id := range v.order {
		if v.entries[id].Metadata.SourceID == sourceID {
			delete(v.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	v.order = kept

	if len(v.entries) == 0 {
		v.dimensions = 0
		v.model = ""
	}
	return removed, nil
}

// ReplaceSource swaps the entries of a source. Every passage is checked
// before the index is touched, so a rejected batch changes nothing.
func (v *VectorIndex) ReplaceSource(
	_ context.Context,
	sourceID string,
	passages []domain.Passage,
	embeddings [][]float32,
) (int, error) {
	if len(passages) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d passages with %d embeddings",
			domain.ErrInvalidInput, len(passages), len(embeddings))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var kept []string
	removed := 0
	for _, id := range v.order {
		if v.entries[id].Metadata.SourceID == sourceID {
			removed++
			continue
		}
		kept = append(kept, id)
	}

	dims := v.dimensions
	if len(kept) == 0 {
		dims = 0
	}

	ids := make([]string, len(passages))
	seen := make(map[string]bool, len(passages))
	for i, p := range passages {
		vec := embeddings[i]
		if len(vec) == 0 {
			return 0, fmt.Errorf("%w: passage %d: empty embedding", domain.ErrInvalidInput, p.SequenceIndex)
		}
		if dims != 0 && dims != len(vec) {
			return 0, fmt.Errorf("%w: passage %d: index has %d dimensions, got %d",
				domain.ErrDimensionMismatch, p.SequenceIndex, dims, len(vec))
		}
		dims = len(vec)

		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		existing, exists := v.entries[id]
		if seen[id] || (exists && existing.Metadata.SourceID != sourceID) {
			return 0, fmt.Errorf("%w: passage %s", domain.ErrAlreadyExists, id)
		}
		seen[id] = true
		ids[i] = id
	}

	for _, id := range v.order {
		if v.entries[id].Metadata.SourceID == sourceID {
			delete(v.entries, id)
		}
	}
	v.order = kept
	v.dimensions = dims

	now := v.now()
	for i, p := range passages {
		v.entries[ids[i]] = domain.IndexEntry{
			PassageID:     ids[i],
			Text:          p.Text,
			Metadata:      p.Metadata,
			SequenceIndex: p.SequenceIndex,
			OverlapLen:    p.OverlapLen,
			Oversized:     p.Oversized,
			Embedding:     slices.Clone(embeddings[i]),
			CreatedAt:     now,
		}
		v.order = append(v.order, ids[i])
	}
	return removed, nil
}

// Get retrieves an entry by id.
func (v *VectorIndex) Get(_ context.Context, id string) (*domain.IndexEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	e, ok := v.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.Embedding = slices.Clone(e.Embedding)
	return &e, nil
}

// Search returns the k entries most similar to query.
func (v *VectorIndex) Search(_ context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dimensions != 0 && v.dimensions != len(query) {
		return nil, fmt.Errorf("%w: index has %d dimensions, query has %d",
			domain.ErrDimensionMismatch, v.dimensions, len(query))
	}

	top := vectormath.NewTopK(k)
	for _, id := range v.order {
		e := v.entries[id]
		top.Push(domain.VectorHit{Entry: e, Similarity: vectormath.Cosine(query, e.Embedding)})
	}
	return top.Sorted(), nil
}

// Info describes the index.
func (v *VectorIndex) Info(_ context.Context) (*domain.IndexInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return &domain.IndexInfo{
		Path:       ":memory:",
		Count:      len(v.entries),
		Dimensions: v.dimensions,
		Model:      v.model,
	}, nil
}

// SetModel records the embedding model.
func (v *VectorIndex) SetModel(_ context.Context, model string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.model == model {
		return nil
	}
	if v.model != "" {
		return fmt.Errorf("%w: index built with model %q, not %q", domain.ErrInvalidInput, v.model, model)
	}
	v.model = model
	return nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
