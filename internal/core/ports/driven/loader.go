package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// DocumentLoader reads a document from a path and yields its text units.
type DocumentLoader interface {
	// Name returns the loader name for logging.
	Name() string

	// Extensions returns the file extensions this loader handles,
	// lower-case and including the dot. An empty string matches files
	// without an extension.
	Extensions() []string

	// Units returns a lazy sequence of the document's units in order.
	// Each range over the sequence reopens the document, and the
	// underlying file is closed when iteration stops. A non-nil error
	// ends the sequence.
	Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error]
}
