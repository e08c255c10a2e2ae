// Package vectormath holds the exhaustive similarity search shared by the
// vector index adapters.
package vectormath

import (
	"container/heap"
	"math"
	"sort"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length or zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK keeps the k most similar hits seen so far.
type TopK struct {
	k    int
	hits hitHeap
}

// NewTopK creates a collector for k hits.
func NewTopK(k int) *TopK {
	return &TopK{k: k, hits: make(hitHeap, 0, k)}
}

// Push offers a hit.
func (t *TopK) Push(hit domain.VectorHit) {
	if t.k <= 0 {
		return
	}
	if len(t.hits) < t.k {
		heap.Push(&t.hits, hit)
		return
	}
	if hit.Similarity > t.hits[0].Similarity {
		t.hits[0] = hit
		heap.Fix(&t.hits, 0)
	}
}

// Sorted returns the kept hits, most similar first. Ties are ordered by
// passage id.
func (t *TopK) Sorted() []domain.VectorHit {
	out := make([]domain.VectorHit, len(t.hits))
	copy(out, t.hits)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Entry.PassageID < out[j].Entry.PassageID
	})
	return out
}

// hitHeap is a min-heap on similarity.
type hitHeap []domain.VectorHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[i].Similarity < h[j].Similarity }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(domain.VectorHit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
