package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent ingestion failures by category.
// Adapters wrap them so callers can match with errors.Is.
var (
	// ErrLoad indicates the document is missing, unreadable or empty.
	ErrLoad = errors.New("load error")

	// ErrConfig indicates invalid configuration. Raised before any I/O.
	ErrConfig = errors.New("config error")

	// ErrEmbedding indicates the embedding provider call failed or
	// returned a malformed response.
	ErrEmbedding = errors.New("embedding error")

	// ErrPersist indicates a vector index write failed.
	ErrPersist = errors.New("persist error")

	// ErrCountMismatch indicates the post-ingestion count check failed.
	ErrCountMismatch = errors.New("count mismatch")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no loader handles the document type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIngestInProgress indicates another run holds the index.
	ErrIngestInProgress = errors.New("ingestion in progress")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// EmbeddingError carries the context of a failed embedding call.
type EmbeddingError struct {
	// First and Last are the sequence indexes of the failed batch.
	// Only meaningful when HasRange is set.
	First, Last int
	HasRange    bool

	// StatusCode is the provider HTTP status, zero when not applicable.
	StatusCode int

	// Payload is the provider's error body or message.
	Payload string

	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingError) Error() string {
	msg := "embedding error"
	if e.HasRange {
		msg += fmt.Sprintf(" (passages %d-%d)", e.First, e.Last)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Payload != "" {
		msg += ": " + e.Payload
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Is reports ErrEmbedding as a match.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// CountMismatchError reports a failed post-ingestion count check.
type CountMismatchError struct {
	Expected int
	Actual   int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("count mismatch: expected %d entries, index reports %d", e.Expected, e.Actual)
}

// Is reports ErrCountMismatch as a match.
func (e *CountMismatchError) Is(target error) bool {
	return target == ErrCountMismatch
}

// StageError attaches the failing state to an ingestion error.
type StageError struct {
	Stage IngestState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or IngestIdle if none.
func FailedStage(err error) IngestState {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return IngestIdle
}
