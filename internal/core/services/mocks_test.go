package services

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// --- Mock implementations for ingestion testing ---

// mockLoader implements driven.DocumentLoader with fixed units.
type mockLoader struct {
	units []string
	err   error
	calls atomic.Int32
}

var _ driven.DocumentLoader = (*mockLoader)(nil)

func (m *mockLoader) Name() string         { return "mock" }
func (m *mockLoader) Extensions() []string { return []string{".txt"} }

func (m *mockLoader) Units(_ context.Context, path string) iter.Seq2[domain.Unit, error] {
	m.calls.Add(1)
	return func(yield func(domain.Unit, error) bool) {
		if m.err != nil {
			yield(domain.Unit{}, m.err)
			return
		}
		for i, text := range m.units {
			unit := domain.Unit{
				Text:     text,
				Metadata: domain.UnitMetadata{SourceID: path, Position: i},
			}
			if !yield(unit, nil) {
				return
			}
		}
	}
}

// mockEmbedder implements driven.EmbeddingProvider. By default each text
// maps to a deterministic vector derived from its length.
type mockEmbedder struct {
	dims  int
	model string

	// embedFn overrides the default behaviour when set.
	embedFn func(ctx context.Context, call int, texts []string) ([][]float32, error)

	mu      sync.Mutex
	calls   int
	batches [][]string
}

var _ driven.EmbeddingProvider = (*mockEmbedder)(nil)

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, model: "mock-embed"}
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.batches = append(m.batches, texts)
	m.mu.Unlock()

	if m.embedFn != nil {
		return m.embedFn(ctx, call, texts)
	}
	return fixedVectors(texts, m.dims), nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return m.model }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func fixedVectors(texts []string, dims int) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dims)
		for d := range vec {
			vec[d] = float32(len(text)+d) / 100
		}
		out[i] = vec
	}
	return out
}

// failingIndex wraps a VectorIndex and injects failures.
type failingIndex struct {
	driven.VectorIndex

	failInsertAt int // 1-based insert call that fails; 0 never fails
	insertErr    error
	inserts      int

	// dropInserts makes inserts succeed without storing anything.
	dropInserts bool
}

func (f *failingIndex) Insert(ctx context.Context, p domain.Passage, vec []float32) (string, error) {
	f.inserts++
	if f.failInsertAt > 0 && f.inserts == f.failInsertAt {
		return "", f.insertErr
	}
	if f.dropInserts {
		return p.ID, nil
	}
	return f.VectorIndex.Insert(ctx, p, vec)
}

// ReplaceSource counts each passage as an insert. A failing insert rejects
// the whole batch and leaves the wrapped index as it was.
func (f *failingIndex) ReplaceSource(
	ctx context.Context,
	sourceID string,
	passages []domain.Passage,
	vecs [][]float32,
) (int, error) {
	start := f.inserts
	f.inserts += len(passages)
	if f.failInsertAt > start && f.failInsertAt <= f.inserts {
		return 0, f.insertErr
	}
	if f.dropInserts {
		return f.VectorIndex.DeleteSource(ctx, sourceID)
	}
	return f.VectorIndex.ReplaceSource(ctx, sourceID, passages, vecs)
}

// failingRunStore rejects every record.
type failingRunStore struct {
	err error
}

func (f *failingRunStore) Record(context.Context, domain.IngestRun) error { return f.err }
func (f *failingRunStore) Recent(context.Context, int) ([]domain.IngestRun, error) {
	return nil, f.err
}
