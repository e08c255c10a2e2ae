package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrLoad", ErrLoad},
		{"ErrConfig", ErrConfig},
		{"ErrEmbedding", ErrEmbedding},
		{"ErrPersist", ErrPersist},
		{"ErrCountMismatch", ErrCountMismatch},
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrIngestInProgress", ErrIngestInProgress},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestEmbeddingError_MatchesSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("embed: %w", &EmbeddingError{StatusCode: 503, Payload: "unavailable", Err: cause})

	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPersist)

	var ee *EmbeddingError
	assert.True(t, errors.As(err, &ee))
	assert.Equal(t, 503, ee.StatusCode)
}

func TestEmbeddingError_Message(t *testing.T) {
	t.Run("without range", func(t *testing.T) {
		err := &EmbeddingError{StatusCode: 400, Payload: "bad request"}
		assert.Equal(t, "embedding error: status 400: bad request", err.Error())
	})

	t.Run("with range", func(t *testing.T) {
		err := &EmbeddingError{First: 0, Last: 31, HasRange: true, Err: errors.New("timeout")}
		assert.Equal(t, "embedding error (passages 0-31): timeout", err.Error())
	})
}

func TestCountMismatchError(t *testing.T) {
	err := fmt.Errorf("verify: %w", &CountMismatchError{Expected: 3, Actual: 2})

	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Contains(t, err.Error(), "expected 3")
	assert.Contains(t, err.Error(), "reports 2")
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: IngestEmbedding, Err: &EmbeddingError{Payload: "quota"}}

	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Equal(t, IngestEmbedding, FailedStage(err))
	assert.Equal(t, IngestEmbedding, FailedStage(fmt.Errorf("run: %w", err)))
	assert.Equal(t, IngestIdle, FailedStage(errors.New("plain")))
	assert.Contains(t, err.Error(), "embedding failed")
}
