package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
	"github.com/custodia-labs/docindex/internal/lockfile"
	"github.com/custodia-labs/docindex/internal/logger"
	"github.com/custodia-labs/docindex/internal/ratelimit"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// IngestOrchestrator drives one document through
// Loading -> Chunking -> Embedding -> Persisting -> Verified.
// Any failure moves the run to Failed and is reported with its stage.
type IngestOrchestrator struct {
	settings domain.IngestSettings
	loader   driven.DocumentLoader
	pipeline driven.PostProcessorPipeline
	provider driven.EmbeddingProvider
	index    driven.VectorIndex
	runs     driven.RunStore
	limiter  *ratelimit.Limiter
	now      func() time.Time

	// lockStore serialises runs across processes sharing a store path.
	lockStore func(ctx context.Context, dir string) (func() error, error)

	// running guards against concurrent runs in this process.
	running sync.Mutex

	mu        sync.RWMutex
	progress  domain.IngestProgress
	listeners []func(domain.IngestProgress)
}

// NewIngestOrchestrator creates an orchestrator. The run store is
// optional; when nil, run history is not recorded.
func NewIngestOrchestrator(
	settings domain.IngestSettings,
	loader driven.DocumentLoader,
	pipeline driven.PostProcessorPipeline,
	provider driven.EmbeddingProvider,
	index driven.VectorIndex,
	runs driven.RunStore,
) *IngestOrchestrator {
	return &IngestOrchestrator{
		settings:  settings,
		loader:    loader,
		pipeline:  pipeline,
		provider:  provider,
		index:     index,
		runs:      runs,
		limiter:   ratelimit.New(settings.RateLimit, 0),
		now:       time.Now,
		lockStore: acquireStoreLock,
		progress:  domain.IngestProgress{State: domain.IngestIdle},
	}
}

// OnProgress registers a callback invoked on every state transition and
// after every embedded batch. Callbacks may run on worker goroutines.
func (o *IngestOrchestrator) OnProgress(fn func(domain.IngestProgress)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Status returns a snapshot of the current or last run.
func (o *IngestOrchestrator) Status() domain.IngestProgress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

// Ingest runs the full pipeline for the document at path. An empty path
// falls back to the configured source path. The report is always
// returned; a failed run also returns a *domain.StageError.
func (o *IngestOrchestrator) Ingest(ctx context.Context, path string) (*domain.IngestReport, error) {
	if path == "" {
		path = o.settings.SourcePath
	}

	report := &domain.IngestReport{
		RunID:     uuid.NewString(),
		Path:      path,
		State:     domain.IngestIdle,
		StartedAt: o.now(),
	}

	if !o.running.TryLock() {
		err := &domain.StageError{Stage: domain.IngestIdle, Err: domain.ErrIngestInProgress}
		o.finish(report, err)
		return report, err
	}
	defer o.running.Unlock()

	o.update(func(p *domain.IngestProgress) { *p = domain.IngestProgress{State: domain.IngestIdle} })
	logger.Section("Ingest " + path)

	err := o.run(ctx, path, report)
	o.finish(report, err)
	o.record(report)

	if err != nil {
		o.transition(domain.IngestFailed)
		logger.Stage(domain.IngestFailed, "%v", err)
		return report, err
	}
	o.transition(domain.IngestVerified)
	logger.Stage(domain.IngestVerified, "%d entries for %s, %d in index",
		report.Persisted, report.SourceID, report.IndexTotal)
	return report, nil
}

// run executes the stages. Every returned error is a *domain.StageError.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *IngestOrchestrator) run(ctx context.Context, path string, report *domain.IngestReport) error {
	// 1. Configuration is checked before any I/O.
	if err := o.settings.Validate(); err != nil {
		return stageErr(domain.IngestIdle, err)
	}
	if path == "" {
		return stageErr(domain.IngestIdle, fmt.Errorf("%w: no document path given", domain.ErrConfig))
	}
	if o.loader == nil || o.pipeline == nil || o.provider == nil || o.index == nil {
		return stageErr(domain.IngestIdle, fmt.Errorf("%w: orchestrator is missing a component", domain.ErrConfig))
	}

	sourceID, err := filepath.Abs(path)
	if err != nil {
		return stageErr(domain.IngestIdle, fmt.Errorf("%w: resolving %s: %w", domain.ErrLoad, path, err))
	}
	report.SourceID = sourceID

	// 2. Serialise runs against the same store.
	if o.lockStore != nil && o.settings.StorePath != domain.MemoryStorePath {
		release, err := o.lockStore(ctx, o.settings.StorePath)
		if err != nil {
			return stageErr(domain.IngestIdle, err)
		}
		defer func() {
			if err := release(); err != nil {
				logger.Warn("releasing store lock: %v", err)
			}
		}()
	}

	// 3. The index must have been built with the same model and dimension.
	if err := o.checkCompatibility(ctx); err != nil {
		return stageErr(domain.IngestIdle, err)
	}

	// 4. Loading
	o.transition(domain.IngestLoading)
	doc, err := o.load(ctx, sourceID, path)
	if err != nil {
		return stageErr(domain.IngestLoading, err)
	}
	report.Units = len(doc.Units)
	o.update(func(p *domain.IngestProgress) { p.Units = len(doc.Units) })
	logger.Stage(domain.IngestLoading, "%d units, %d characters", len(doc.Units), doc.TextLength())

	// 5. Chunking
	o.transition(domain.IngestChunking)
	passages, err := o.pipeline.Process(ctx, doc)
	if err != nil {
		return stageErr(domain.IngestChunking, err)
	}
	if len(passages) == 0 {
		return stageErr(domain.IngestChunking, fmt.Errorf("%w: %s produced no passages", domain.ErrLoad, path))
	}
	report.Passages = len(passages)
	for i := range passages {
		if passages[i].Oversized {
			report.Oversized++
		}
	}
	o.update(func(p *domain.IngestProgress) { p.Passages = len(passages) })
	logger.Stage(domain.IngestChunking, "%d passages (%d oversized)", len(passages), report.Oversized)

	// 6. Embedding
	o.transition(domain.IngestEmbedding)
	stage := newEmbedStage(o.settings, o.provider, o.limiter)
	stage.onBatch = func(n int) {
		o.update(func(p *domain.IngestProgress) { p.Embedded += n })
	}
	vectors, err := stage.run(ctx, passages)
	if err != nil {
		return stageErr(domain.IngestEmbedding, err)
	}
	logger.Stage(domain.IngestEmbedding, "%d vectors of %d dimensions", len(vectors), stage.dimensions())

	// 7. Persisting
	o.transition(domain.IngestPersisting)
	if err := o.persist(ctx, sourceID, passages, vectors, report); err != nil {
		return stageErr(domain.IngestPersisting, err)
	}

	// 8. Verification
	if err := o.verify(ctx, sourceID, report); err != nil {
		return stageErr(domain.IngestPersisting, err)
	}
	return nil
}

// checkCompatibility rejects a provider whose model or dimension differs
// from the one a non-empty index was built with.
func (o *IngestOrchestrator) checkCompatibility(ctx context.Context) error {
	info, err := o.index.Info(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading index info: %w", domain.ErrPersist, err)
	}
	if info.Count == 0 {
		return nil
	}

	model := o.provider.ModelName()
	if info.Model != "" && model != "" && info.Model != model {
		return fmt.Errorf("%w: index at %s was built with model %q, provider uses %q",
			domain.ErrConfig, info.Path, info.Model, model)
	}

	dims := o.provider.Dimensions()
	if dims == 0 {
		dims = o.settings.Embedding.ResolvedDimensions()
	}
	if info.Dimensions != 0 && dims != 0 && info.Dimensions != dims {
		return fmt.Errorf("%w: index at %s has %d dimensions, model %q produces %d",
			domain.ErrConfig, info.Path, info.Dimensions, model, dims)
	}
	return nil
}

// load collects the loader's units into a document.
func (o *IngestOrchestrator) load(ctx context.Context, sourceID, path string) (*domain.Document, error) {
	doc := &domain.Document{SourceID: sourceID, URI: path}

	nonBlank := 0
	for unit, err := range o.loader.Units(ctx, sourceID) {
		if err != nil {
			if !errors.Is(err, domain.ErrLoad) {
				err = fmt.Errorf("%w: %w", domain.ErrLoad, err)
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit.Metadata.SourceID = sourceID
		if strings.TrimSpace(unit.Text) != "" {
			nonBlank++
		}
		doc.Units = append(doc.Units, unit)
	}

	if nonBlank == 0 {
		return nil, fmt.Errorf("%w: %s contains no text", domain.ErrLoad, path)
	}
	return doc, nil
}

// persist writes every passage with its embedding in sequence order.
// Under the replace policy the previous entries of the source are swapped
// for the new ones in one atomic write, so a failure keeps the old version.
// Otherwise each insert is durable on return.
func (o *IngestOrchestrator) persist(
	ctx context.Context,
	sourceID string,
	passages []domain.Passage,
	vectors [][]float32,
	report *domain.IngestReport,
) error {
	if model := o.provider.ModelName(); model != "" {
		if err := o.index.SetModel(ctx, model); err != nil {
			return fmt.Errorf("%w: recording model: %w", domain.ErrPersist, err)
		}
	}

	if o.settings.DuplicatePolicy == domain.PolicyReplace {
		return o.replace(ctx, sourceID, passages, vectors, report)
	}

	before, err := o.index.CountSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("%w: counting entries: %w", domain.ErrPersist, err)
	}
	report.Expected = before + len(passages)

	for i := range passages {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := passages[i]
		p.Metadata.SourceID = sourceID
		p.ID = ""

		id, err := o.index.Insert(ctx, p, vectors[i])
		if err != nil {
			return fmt.Errorf("%w: inserting passage %d: %w", domain.ErrPersist, p.SequenceIndex, err)
		}
		passages[i].ID = id
		o.update(func(pr *domain.IngestProgress) { pr.Persisted++ })
	}
	return nil
}

// replace swaps the source's entries for passages under stable ids.
func (o *IngestOrchestrator) replace(
	ctx context.Context,
	sourceID string,
	passages []domain.Passage,
	vectors [][]float32,
	report *domain.IngestReport,
) error {
	batch := make([]domain.Passage, len(passages))
	for i := range passages {
		p := passages[i]
		p.Metadata.SourceID = sourceID
		p.ID = stablePassageID(sourceID, p.SequenceIndex, p.Text)
		batch[i] = p
	}
	report.Expected = len(batch)

	removed, err := o.index.ReplaceSource(ctx, sourceID, batch, vectors)
	if err != nil {
		return fmt.Errorf("%w: replacing entries: %w", domain.ErrPersist, err)
	}
	if removed > 0 {
		logger.Stage(domain.IngestPersisting, "replaced %d previous entries", removed)
	}

	for i := range passages {
		passages[i].ID = batch[i].ID
	}
	o.update(func(pr *domain.IngestProgress) { pr.Persisted += len(batch) })
	return nil
}

// verify checks the index reports exactly the expected entries for the source.
func (o *IngestOrchestrator) verify(ctx context.Context, sourceID string, report *domain.IngestReport) error {
	actual, err := o.index.CountSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("%w: counting entries: %w", domain.ErrPersist, err)
	}
	report.Persisted = actual

	total, err := o.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: counting entries: %w", domain.ErrPersist, err)
	}
	report.IndexTotal = total

	if actual != report.Expected {
		return &domain.CountMismatchError{Expected: report.Expected, Actual: actual}
	}
	return nil
}

// finish stamps the outcome onto the report.
func (o *IngestOrchestrator) finish(report *domain.IngestReport, err error) {
	report.FinishedAt = o.now()
	if err != nil {
		report.State = domain.IngestFailed
		report.FailedStage = domain.FailedStage(err)
		report.Err = err
		return
	}
	report.State = domain.IngestVerified
}

// record saves the run history. Failures are logged, not returned.
func (o *IngestOrchestrator) record(report *domain.IngestReport) {
	if o.runs == nil {
		return
	}
	// The run context may already be cancelled; history is still written.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.runs.Record(ctx, domain.RunFromReport(report)); err != nil {
		logger.Warn("recording ingest run %s: %v", report.RunID, err)
	}
}

// transition moves the state machine and notifies listeners.
func (o *IngestOrchestrator) transition(state domain.IngestState) {
	o.update(func(p *domain.IngestProgress) { p.State = state })
}

// update mutates the progress under lock, then notifies listeners with a snapshot.
func (o *IngestOrchestrator) update(fn func(*domain.IngestProgress)) {
	o.mu.Lock()
	fn(&o.progress)
	snapshot := o.progress
	listeners := o.listeners
	o.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func stageErr(stage domain.IngestState, err error) error {
	return &domain.StageError{Stage: stage, Err: err}
}

// acquireStoreLock takes the PID lock file in the store directory.
func acquireStoreLock(ctx context.Context, dir string) (func() error, error) {
	lock, err := lockfile.Acquire(ctx, dir, lockfile.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
