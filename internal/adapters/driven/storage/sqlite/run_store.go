package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// Record saves a run, replacing any earlier record with the same id.
func (r *runStore) Record(ctx context.Context, run domain.IngestRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, source_id, path, state, passages, persisted, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			passages = excluded.passages,
			persisted = excluded.persisted,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, run.ID, run.SourceID, run.Path, string(run.State), run.Passages, run.Persisted,
		nullString(run.Error), formatTime(run.StartedAt).String, formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("recording ingest run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs ordered by start time, newest first.
func (r *runStore) Recent(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, source_id, path, state, passages, persisted, error, started_at, finished_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		var run domain.IngestRun
		var state string
		var errText, startedAt, finishedAt sql.NullString

		if err := rows.Scan(&run.ID, &run.SourceID, &run.Path, &state, &run.Passages,
			&run.Persisted, &errText, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning ingest run: %w", err)
		}

		run.State = domain.IngestState(state)
		run.Error = errText.String
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingest runs: %w", err)
	}

	return runs, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
