// Package plaintext loads UTF-8 text files. Form feeds separate pages.
package plaintext

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"os"
	"unicode/utf8"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// maxPageSize bounds a single page held in memory.
const maxPageSize = 64 << 20

// Loader handles plain text and markdown documents.
type Loader struct{}

// New creates a new plain text loader.
func New() *Loader {
	return &Loader{}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "plaintext"
}

// Extensions returns the file extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{"", ".txt", ".text", ".md", ".markdown", ".rst", ".csv", ".log"}
}

// Units yields one unit per form-feed separated page.
// The file is opened on every iteration and closed when iteration stops.
func (l *Loader) Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error] {
	return func(yield func(domain.Unit, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: %w", domain.ErrLoad, err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxPageSize)
		scanner.Split(scanPages)

		position := 0
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(domain.Unit{}, err)
				return
			}
			page := scanner.Bytes()
			if !utf8.Valid(page) {
				yield(domain.Unit{}, fmt.Errorf("%w: %s page %d is not valid UTF-8", domain.ErrLoad, path, position))
				return
			}
			unit := domain.Unit{
				Text:     string(page),
				Metadata: domain.UnitMetadata{SourceID: path, Position: position},
			}
			if !yield(unit, nil) {
				return
			}
			position++
		}
		if err := scanner.Err(); err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: read %s: %w", domain.ErrLoad, path, err))
		}
	}
}

// scanPages is a bufio.SplitFunc that splits on form feeds.
func scanPages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\f'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
