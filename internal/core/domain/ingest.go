package domain

import "time"

// IngestState is a state of the ingestion state machine.
type IngestState string

// Ingestion states, in the order a successful run passes through them.
const (
	IngestIdle       IngestState = "idle"
	IngestLoading    IngestState = "loading"
	IngestChunking   IngestState = "chunking"
	IngestEmbedding  IngestState = "embedding"
	IngestPersisting IngestState = "persisting"
	IngestVerified   IngestState = "verified"
	IngestFailed     IngestState = "failed"
)

// IsTerminal returns true for Verified and Failed.
func (s IngestState) IsTerminal() bool {
	return s == IngestVerified || s == IngestFailed
}

// IsValid returns true if the state is recognised.
func (s IngestState) IsValid() bool {
	switch s {
	case IngestIdle, IngestLoading, IngestChunking, IngestEmbedding,
		IngestPersisting, IngestVerified, IngestFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s IngestState) String() string {
	return string(s)
}

// IngestProgress is a snapshot of a running ingestion.
type IngestProgress struct {
	State     IngestState
	Units     int
	Passages  int
	Embedded  int
	Persisted int
}

// IngestReport is the outcome of one ingestion run.
type IngestReport struct {
	// RunID identifies the run.
	RunID string

	// SourceID and Path identify the ingested document.
	SourceID string
	Path     string

	// State is Verified on success, Failed otherwise.
	State IngestState

	// FailedStage is the state the run was in when it failed.
	FailedStage IngestState

	// Units is the number of units loaded.
	Units int

	// Passages is the number of passages produced by the chunker.
	Passages int

	// Oversized is the number of passages flagged as atomic overflow.
	Oversized int

	// Expected is the entry count the index must report for the source.
	Expected int

	// Persisted is the entry count the index reported for the source.
	Persisted int

	// IndexTotal is the total entry count of the index after the run.
	IndexTotal int

	StartedAt  time.Time
	FinishedAt time.Time

	// Err is the originating error of a failed run.
	Err error
}

// Duration returns how long the run took.
func (r *IngestReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IngestRun is the persisted history record of an ingestion run.
type IngestRun struct {
	ID         string
	SourceID   string
	Path       string
	State      IngestState
	Passages   int
	Persisted  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFromReport converts a report into its history record.
func RunFromReport(r *IngestReport) IngestRun {
	run := IngestRun{
		ID:         r.RunID,
		SourceID:   r.SourceID,
		Path:       r.Path,
		State:      r.State,
		Passages:   r.Passages,
		Persisted:  r.Persisted,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	return run
}
