package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/logger"
	"github.com/custodia-labs/docindex/internal/ratelimit"
)

// embedStage turns passages into embeddings in batches.
// Batches run with bounded parallelism; results are placed by passage
// index so the output order always matches the input order.
type embedStage struct {
	provider     driven.EmbeddingProvider
	limiter      *ratelimit.Limiter
	batchSize    int
	concurrency  int
	timeout      time.Duration
	retries      int
	retryBackoff time.Duration

	// onBatch is called after each successful batch with its size.
	onBatch func(n int)

	dimsMu sync.Mutex
	dims   int
}

func newEmbedStage(
	settings domain.IngestSettings,
	provider driven.EmbeddingProvider,
	limiter *ratelimit.Limiter,
) *embedStage {
	dims := provider.Dimensions()
	if dims == 0 {
		dims = settings.Embedding.ResolvedDimensions()
	}
	return &embedStage{
		provider:     provider,
		limiter:      limiter,
		batchSize:    max(settings.BatchSize, 1),
		concurrency:  max(settings.Concurrency, 1),
		timeout:      settings.Timeout,
		retries:      settings.Retries,
		retryBackoff: settings.RetryBackoff,
		dims:         dims,
	}
}

// run embeds all passages. Any failed batch fails the stage and cancels
// the batches still in flight.
func (s *embedStage) run(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	out := make([][]float32, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(passages); start += s.batchSize {
		end := min(start+s.batchSize, len(passages))
		batch := passages[start:end]

		g.Go(func() error {
			vectors, err := s.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			if s.onBatch != nil {
				s.onBatch(len(batch))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatch calls the provider for one batch, retrying with a linear
// backoff. A batch either succeeds whole or fails whole.
func (s *embedStage) embedBatch(ctx context.Context, batch []domain.Passage) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	first, last := batch[0].SequenceIndex, batch[len(batch)-1].SequenceIndex

	for attempt := 0; ; attempt++ {
		vectors, err := s.call(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		err = withRange(err, first, last)

		if ctx.Err() != nil || attempt >= s.retries {
			return nil, err
		}

		wait := s.retryBackoff * time.Duration(attempt+1)
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) && embErr.StatusCode == http.StatusTooManyRequests && s.limiter != nil {
			s.limiter.Backoff(wait)
		}
		logger.Warn("embedding passages %d-%d failed (attempt %d/%d): %v; retrying in %s",
			first, last, attempt+1, s.retries+1, err, wait)

		select {
		case <-ctx.Done():
			return nil, withRange(ctx.Err(), first, last)
		case <-time.After(wait):
		}
	}
}

// call makes a single rate-limited, time-bounded provider call and
// validates the response.
func (s *embedStage) call(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	vectors, err := s.provider.EmbedBatch(callCtx, texts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("call timed out after %s: %w", s.timeout, err)
		}
		return nil, err
	}
	if err := s.validate(vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// validate rejects partial or malformed responses.
func (s *embedStage) validate(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return &domain.EmbeddingError{
			Payload: fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), want),
		}
	}

	s.dimsMu.Lock()
	defer s.dimsMu.Unlock()

	for i, vec := range vectors {
		if len(vec) == 0 {
			return &domain.EmbeddingError{Payload: fmt.Sprintf("vector %d is empty", i)}
		}
		if s.dims == 0 {
			s.dims = len(vec)
		}
		if len(vec) != s.dims {
			return &domain.EmbeddingError{
				Payload: fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(vec), s.dims),
			}
		}
		for _, f := range vec {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return &domain.EmbeddingError{Payload: fmt.Sprintf("vector %d contains a non-finite value", i)}
			}
		}
	}
	return nil
}

// dimensions returns the vector size observed or declared so far.
func (s *embedStage) dimensions() int {
	s.dimsMu.Lock()
	defer s.dimsMu.Unlock()
	return s.dims
}

// withRange returns err as an *EmbeddingError carrying the batch range.
func withRange(err error, first, last int) error {
	if embErr, ok := err.(*domain.EmbeddingError); ok { //nolint:errorlint // only the outermost error is re-ranged
		ranged := *embErr
		ranged.First, ranged.Last, ranged.HasRange = first, last, true
		return &ranged
	}
	return &domain.EmbeddingError{First: first, Last: last, HasRange: true, Err: err}
}
