package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("reports a verified run", func(t *testing.T) {
		ingest := &mockIngestService{report: &domain.IngestReport{
			RunID:      "run-1",
			SourceID:   "/docs/a.txt",
			State:      domain.IngestVerified,
			Units:      2,
			Passages:   5,
			Persisted:  5,
			IndexTotal: 9,
			StartedAt:  started,
			FinishedAt: started.Add(1500 * time.Millisecond),
		}}
		server := newTestServer(t, &Ports{Index: &mockIndexService{}, Ingest: ingest})

		result, output, err := server.handleIngest(ctx, nil, IngestInput{Path: "/docs/a.txt"})

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, []string{"/docs/a.txt"}, ingest.paths)
		assert.Equal(t, "verified", output.State)
		assert.Equal(t, 5, output.Persisted)
		assert.Equal(t, 9, output.IndexTotal)
		assert.Equal(t, int64(1500), output.DurationMS)
		assert.Empty(t, output.Error)
	})

	t.Run("reports a failed run as a tool error", func(t *testing.T) {
		cause := &domain.StageError{Stage: domain.IngestEmbedding, Err: &domain.EmbeddingError{StatusCode: 500}}
		ingest := &mockIngestService{
			report: &domain.IngestReport{
				State:       domain.IngestFailed,
				FailedStage: domain.IngestEmbedding,
				Passages:    3,
			},
			err: cause,
		}
		server := newTestServer(t, &Ports{Index: &mockIndexService{}, Ingest: ingest})

		result, output, err := server.handleIngest(ctx, nil, IngestInput{Path: "a.txt"})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		assert.Equal(t, "failed", output.State)
		assert.Equal(t, "embedding", output.FailedStage)
		assert.Contains(t, output.Error, "status 500")
	})

	t.Run("requires a path", func(t *testing.T) {
		ingest := &mockIngestService{}
		server := newTestServer(t, &Ports{Index: &mockIndexService{}, Ingest: ingest})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{})

		require.Error(t, err)
		assert.Empty(t, ingest.paths)
	})

	t.Run("nil report returns the error", func(t *testing.T) {
		ingest := &mockIngestService{err: errors.New("boom")}
		server := newTestServer(t, &Ports{Index: &mockIndexService{}, Ingest: ingest})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Path: "a.txt"})
		assert.EqualError(t, err, "boom")
	})
}

func TestServer_handleIndexInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns index info", func(t *testing.T) {
		index := &mockIndexService{info: &domain.IndexInfo{
			Path: "/tmp/db/index.db", Count: 42, Dimensions: 768, Model: "embedding-001",
		}}
		server := newTestServer(t, &Ports{Index: index})

		_, output, err := server.handleIndexInfo(ctx, nil, IndexInfoInput{})

		require.NoError(t, err)
		assert.Equal(t, IndexInfoOutput{
			Path: "/tmp/db/index.db", Count: 42, Dimensions: 768, Model: "embedding-001",
		}, output)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Index: &mockIndexService{err: errors.New("database error")}})

		_, _, err := server.handleIndexInfo(ctx, nil, IndexInfoInput{})
		assert.EqualError(t, err, "database error")
	})
}

func TestServer_handleGetPassage(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	index := &mockIndexService{entries: map[string]*domain.IndexEntry{
		"p-1": {
			PassageID:     "p-1",
			Text:          "overlap and core",
			Metadata:      domain.PassageMetadata{SourceID: "/docs/a.txt", Position: 2},
			SequenceIndex: 7,
			OverlapLen:    8,
			Embedding:     []float32{1, 2, 3},
			CreatedAt:     created,
		},
	}}
	server := newTestServer(t, &Ports{Index: index})

	t.Run("returns the passage", func(t *testing.T) {
		_, output, err := server.handleGetPassage(ctx, nil, GetPassageInput{ID: "p-1"})

		require.NoError(t, err)
		assert.Equal(t, "p-1", output.ID)
		assert.Equal(t, "/docs/a.txt", output.SourceID)
		assert.Equal(t, 2, output.Position)
		assert.Equal(t, 7, output.SequenceIndex)
		assert.Equal(t, 8, output.OverlapLen)
		assert.Equal(t, 3, output.Dimensions)
		assert.Equal(t, "2026-03-01T12:00:00Z", output.CreatedAt)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, _, err := server.handleGetPassage(ctx, nil, GetPassageInput{ID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("wrapped errors are preserved", func(t *testing.T) {
		failing := newTestServer(t, &Ports{Index: &mockIndexService{err: fmt.Errorf("read: %w", domain.ErrInvalidInput)}})

		_, _, err := failing.handleGetPassage(ctx, nil, GetPassageInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
