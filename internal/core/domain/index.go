package domain

import "time"

// IndexEntry is the durable record persisted for each passage.
// Entries are created on ingestion and never mutated in place.
type IndexEntry struct {
	// PassageID is unique and stable for the lifetime of the store.
	PassageID string

	// Text is the passage text.
	Text string

	// Metadata is the passage metadata.
	Metadata PassageMetadata

	// SequenceIndex is the passage order within its ingestion run.
	SequenceIndex int

	// OverlapLen is the length of the overlap prefix in Text.
	OverlapLen int

	// Oversized mirrors Passage.Oversized.
	Oversized bool

	// Embedding is the stored vector, kept losslessly.
	Embedding []float32

	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// Entry is the matched index entry.
	Entry IndexEntry

	// Similarity is the cosine similarity to the query (-1 to 1).
	Similarity float64
}

// IndexInfo describes a vector index.
type IndexInfo struct {
	// Path is the store location.
	Path string

	// Count is the total number of persisted entries.
	Count int

	// Dimensions is the embedding size fixed by the first insert.
	// Zero when the index is empty.
	Dimensions int

	// Model is the embedding model that produced the stored vectors.
	Model string
}
