package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

func verifiedReport() *domain.IngestReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.IngestReport{
		RunID:      "run-1",
		SourceID:   "/docs/manual.txt",
		State:      domain.IngestVerified,
		Units:      3,
		Passages:   12,
		Oversized:  1,
		Expected:   12,
		Persisted:  12,
		IndexTotal: 40,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path]", ingestCmd.Use)
}

func TestIngestCmd_HasOverrideFlags(t *testing.T) {
	for _, name := range []string{
		"store", "chunk-size", "chunk-overlap", "provider", "model",
		"batch-size", "concurrency", "timeout", "retries", "policy", "json",
	} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestIngestCmd_RejectsTwoPaths(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, _, err := execute("ingest", "a.txt", "b.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arg(s)")
}

func TestIngestCmd_Success(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	env.session.ingest.report = verifiedReport()
	env.session.ingest.progress = []domain.IngestProgress{
		{State: domain.IngestIdle},
		{State: domain.IngestLoading},
		{State: domain.IngestLoading, Units: 3},
		{State: domain.IngestChunking, Units: 3},
		{State: domain.IngestChunking, Units: 3, Passages: 12},
		{State: domain.IngestEmbedding, Units: 3, Passages: 12},
		{State: domain.IngestEmbedding, Units: 3, Passages: 12, Embedded: 8},
		{State: domain.IngestEmbedding, Units: 3, Passages: 12, Embedded: 12},
		{State: domain.IngestPersisting, Units: 3, Passages: 12, Embedded: 12},
		{State: domain.IngestVerified, Units: 3, Passages: 12, Embedded: 12},
	}

	out, _, err := execute("ingest", "docs/manual.txt")

	require.NoError(t, err)
	assert.Equal(t, []string{"docs/manual.txt"}, env.session.ingest.paths)
	assert.True(t, env.session.closed)

	lines := []string{
		"Loading docs/manual.txt",
		"Chunking 3 units",
		"Embedding 12 passages",
		"  embedded 8/12",
		"  embedded 12/12",
		"Persisting 12 passages",
		"Verified /docs/manual.txt",
		"Passages:  12 (1 oversized)",
		"Persisted: 12",
		"Index:     40 entries in ./docindex_db",
		"Duration:  2s",
	}
	last := -1
	for _, l := range lines {
		i := strings.Index(out, l)
		require.GreaterOrEqual(t, i, 0, "missing %q in:\n%s", l, out)
		assert.Greater(t, i, last, "%q out of order", l)
		last = i
	}
}

func TestIngestCmd_FlagsOverrideSettings(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.session.ingest.report = verifiedReport()

	_, _, err := execute("ingest",
		"--store", ":memory:",
		"--chunk-size", "500",
		"--chunk-overlap", "50",
		"--provider", "ollama",
		"--batch-size", "8",
		"--concurrency", "4",
		"--timeout", "1m",
		"--retries", "2",
		"--policy", "append",
		"doc.txt")

	require.NoError(t, err)
	require.NotNil(t, env.settings)
	s := env.settings
	assert.Equal(t, domain.MemoryStorePath, s.StorePath)
	assert.Equal(t, 500, s.ChunkSize)
	assert.Equal(t, 50, s.ChunkOverlap)
	assert.Equal(t, domain.AIProviderOllama, s.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", s.Embedding.Model)
	assert.Equal(t, 8, s.BatchSize)
	assert.Equal(t, 4, s.Concurrency)
	assert.Equal(t, time.Minute, s.Timeout)
	assert.Equal(t, 2, s.Retries)
	assert.Equal(t, domain.PolicyAppend, s.DuplicatePolicy)

	// Overrides are not persisted.
	_, stored := env.config.Get("ingest.chunk_size")
	assert.False(t, stored)
}

func TestIngestCmd_InvalidFlagValue(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	_, stderr, err := execute("ingest", "--chunk-size", "lots", "doc.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, stderr, "Ingestion failed during idle")
	assert.Nil(t, env.settings)
}

func TestIngestCmd_UsesConfiguredSourcePath(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, env.config.Set("ingest.source_path", "/docs/default.md"))
	env.session.ingest.report = verifiedReport()

	_, _, err := execute("ingest")

	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/default.md"}, env.session.ingest.paths)
}

func TestIngestCmd_NoPath(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, _, err := execute("ingest")

	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestIngestCmd_FailurePrintsStageAndCause(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	cause := &domain.EmbeddingError{First: 4, Last: 5, HasRange: true, StatusCode: 503, Payload: "overloaded"}
	env.session.ingest.report = &domain.IngestReport{
		State:       domain.IngestFailed,
		FailedStage: domain.IngestEmbedding,
		Err:         cause,
	}
	env.session.ingest.err = &domain.StageError{Stage: domain.IngestEmbedding, Err: cause}

	out, stderr, err := execute("ingest", "doc.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, stderr, "Ingestion failed during embedding: embedding error (passages 4-5): status 503: overloaded")
	assert.NotContains(t, out, "Verified")
	assert.True(t, env.session.closed)
}

func TestIngestCmd_FailureIsReportedOnce(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	mismatch := &domain.CountMismatchError{Expected: 3, Actual: 2}
	env.session.ingest.report = &domain.IngestReport{State: domain.IngestFailed, Err: mismatch}
	env.session.ingest.err = &domain.StageError{Stage: domain.IngestPersisting, Err: mismatch}

	_, stderr, err := execute("ingest", "doc.txt")

	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.ErrorIs(t, err, domain.ErrCountMismatch)
	assert.Equal(t, 1, strings.Count(stderr, "expected 3 entries, index reports 2"))
}

func TestIngestCmd_UsageErrorsAreNotReported(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, stderr, err := execute("ingest")

	require.Error(t, err)
	assert.False(t, Reported(err))
	assert.Empty(t, stderr)
}

func TestIngestCmd_OpenFailure(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.openErr = &domain.StageError{Stage: domain.IngestIdle, Err: domain.ErrConfig}

	_, stderr, err := execute("ingest", "doc.txt")

	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, stderr, "Ingestion failed during idle: config error")
}

func TestIngestCmd_JSON(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.session.ingest.report = verifiedReport()
	env.session.ingest.progress = []domain.IngestProgress{{State: domain.IngestLoading}}

	out, _, err := execute("ingest", "--json", "doc.txt")
	require.NoError(t, err)

	var got reportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "verified", got.State)
	assert.Equal(t, 12, got.Persisted)
	assert.Equal(t, int64(2000), got.DurationMS)
	assert.Empty(t, got.Error)
}

func TestIngestCmd_JSONFailure(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	mismatch := &domain.CountMismatchError{Expected: 12, Actual: 11}
	env.session.ingest.report = &domain.IngestReport{
		State:       domain.IngestFailed,
		FailedStage: domain.IngestPersisting,
		Expected:    12,
		Persisted:   11,
		Err:         mismatch,
	}
	env.session.ingest.err = &domain.StageError{Stage: domain.IngestPersisting, Err: mismatch}

	out, _, err := execute("ingest", "--json", "doc.txt")

	assert.ErrorIs(t, err, domain.ErrCountMismatch)
	var got reportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "persisting", got.FailedStage)
	assert.Contains(t, got.Error, "expected 12 entries, index reports 11")
}

func TestIngestCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	Configure(Dependencies{})

	_, _, err := execute("ingest", "doc.txt")
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestProgressPrinter_ConcurrentUpdates(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf, path: "x"}
	p.update(domain.IngestProgress{State: domain.IngestEmbedding, Passages: 100})

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.update(domain.IngestProgress{State: domain.IngestEmbedding, Passages: 100, Embedded: n * 10})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, p.embedded)
	assert.Contains(t, buf.String(), "Embedding 100 passages")
}
