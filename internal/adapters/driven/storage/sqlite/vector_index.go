package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docindex/internal/adapters/driven/storage/vectormath"
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// index_meta keys.
const (
	metaDimensions = "dimensions"
	metaModel      = "model"
)

// vectorIndex implements driven.VectorIndex.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Insert persists one passage with its embedding in its own transaction.
func (v *vectorIndex) Insert(ctx context.Context, passage domain.Passage, embedding []float32) (string, error) {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := insertPassage(ctx, tx, passage, embedding)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing passage: %w", err)
	}
	return id, nil
}

// ReplaceSource deletes the entries of a source and inserts the new
// passages in a single transaction.
func (v *vectorIndex) ReplaceSource(
	ctx context.Context,
	sourceID string,
	passages []domain.Passage,
	embeddings [][]float32,
) (int, error) {
	if len(passages) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d passages with %d embeddings",
			domain.ErrInvalidInput, len(passages), len(embeddings))
	}

	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM passages WHERE source_id = ?", sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting source passages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting source passages: %w", err)
	}

	// With no other source left the dimension is free again.
	var remaining int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&remaining); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta WHERE key = ?", metaDimensions); err != nil {
			return 0, fmt.Errorf("resetting index dimensions: %w", err)
		}
	}

	for i := range passages {
		if _, err := insertPassage(ctx, tx, passages[i], embeddings[i]); err != nil {
			return 0, fmt.Errorf("passage %d: %w", passages[i].SequenceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replace: %w", err)
	}
	return int(removed), nil
}

// insertPassage writes one entry inside tx, fixing the index dimension
// on the first write.
func insertPassage(ctx context.Context, tx *sql.Tx, passage domain.Passage, embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", fmt.Errorf("%w: empty embedding", domain.ErrInvalidInput)
	}

	id := passage.ID
	if id == "" {
		id = uuid.NewString()
	}

	dims, err := getMetaInt(ctx, tx, metaDimensions)
	if err != nil {
		return "", err
	}
	switch {
	case dims == 0:
		if err := setMeta(ctx, tx, metaDimensions, strconv.Itoa(len(embedding))); err != nil {
			return "", err
		}
	case dims != len(embedding):
		return "", fmt.Errorf("%w: index has %d dimensions, got %d", domain.ErrDimensionMismatch, dims, len(embedding))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passages (id, source_id, position, sequence_index, text, overlap_len, oversized, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, passage.Metadata.SourceID, passage.Metadata.Position, passage.SequenceIndex,
		passage.Text, passage.OverlapLen, boolToInt(passage.Oversized),
		float32SliceToBytes(embedding), formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: passage %s", domain.ErrAlreadyExists, id)
		}
		return "", fmt.Errorf("inserting passage: %w", err)
	}
	return id, nil
}

// Count returns the total number of entries.
func (v *vectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}

// CountSource returns the number of entries for one source.
func (v *vectorIndex) CountSource(ctx context.Context, sourceID string) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM passages WHERE source_id = ?", sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting source passages: %w", err)
	}
	return n, nil
}

// DeleteSource removes all entries of a source. When the index becomes
// empty its dimension and model are released.
func (v *vectorIndex) DeleteSource(ctx context.Context, sourceID string) (int, error) {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM passages WHERE source_id = ?", sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting source passages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting source passages: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&remaining); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
			return 0, fmt.Errorf("resetting index meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return int(removed), nil
}

// Get retrieves an entry by id.
func (v *vectorIndex) Get(ctx context.Context, id string) (*domain.IndexEntry, error) {
	row := v.store.db.QueryRowContext(ctx, `
		SELECT id, source_id, position, sequence_index, text, overlap_len, oversized, embedding, created_at
		FROM passages WHERE id = ?
	`, id)
	return scanEntry(row)
}

// Search returns the k entries most similar to query by cosine similarity.
// The scan is exhaustive.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	dims, err := getMetaInt(ctx, v.store.db, metaDimensions)
	if err != nil {
		return nil, err
	}
	if dims != 0 && dims != len(query) {
		return nil, fmt.Errorf("%w: index has %d dimensions, query has %d", domain.ErrDimensionMismatch, dims, len(query))
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, source_id, position, sequence_index, text, overlap_len, oversized, embedding, created_at
		FROM passages
	`)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	top := vectormath.NewTopK(k)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		top.Push(domain.VectorHit{
			Entry:      *entry,
			Similarity: vectormath.Cosine(query, entry.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	return top.Sorted(), nil
}

// Info describes the index.
func (v *vectorIndex) Info(ctx context.Context) (*domain.IndexInfo, error) {
	count, err := v.Count(ctx)
	if err != nil {
		return nil, err
	}
	dims, err := getMetaInt(ctx, v.store.db, metaDimensions)
	if err != nil {
		return nil, err
	}
	model, err := getMeta(ctx, v.store.db, metaModel)
	if err != nil {
		return nil, err
	}
	return &domain.IndexInfo{
		Path:       v.store.Dir(),
		Count:      count,
		Dimensions: dims,
		Model:      model,
	}, nil
}

// SetModel records the embedding model. A different model cannot replace
// the recorded one while the index holds entries.
func (v *vectorIndex) SetModel(ctx context.Context, model string) error {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	current, err := getMeta(ctx, v.store.db, metaModel)
	if err != nil {
		return err
	}
	if current == model {
		return nil
	}
	if current != "" {
		return fmt.Errorf("%w: index built with model %q, not %q", domain.ErrInvalidInput, current, model)
	}
	return setMeta(ctx, v.store.db, metaModel, model)
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error {
	return nil
}

// ==================== Helper Functions ====================

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func getMeta(ctx context.Context, q queryer, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index meta %s: %w", key, err)
	}
	return value, nil
}

func getMetaInt(ctx context.Context, q queryer, key string) (int, error) {
	value, err := getMeta(ctx, q, key)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing index meta %s: %w", key, err)
	}
	return n, nil
}

func setMeta(ctx context.Context, e execer, key, value string) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing index meta %s: %w", key, err)
	}
	return nil
}

// scanEntry scans a passage row from *sql.Row or *sql.Rows.
func scanEntry(row scanner) (*domain.IndexEntry, error) {
	var entry domain.IndexEntry
	var oversized int
	var embeddingBlob []byte
	var createdAt sql.NullString

	if err := row.Scan(&entry.PassageID, &entry.Metadata.SourceID, &entry.Metadata.Position,
		&entry.SequenceIndex, &entry.Text, &entry.OverlapLen, &oversized,
		&embeddingBlob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning passage: %w", err)
	}

	entry.Oversized = oversized == 1
	entry.Embedding = bytesToFloat32Slice(embeddingBlob)
	entry.CreatedAt = parseTime(createdAt)

	return &entry, nil
}
