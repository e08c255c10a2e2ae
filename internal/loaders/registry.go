package loaders

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/loaders/docx"
	"github.com/custodia-labs/docindex/internal/loaders/eml"
	"github.com/custodia-labs/docindex/internal/loaders/html"
	"github.com/custodia-labs/docindex/internal/loaders/pdf"
	"github.com/custodia-labs/docindex/internal/loaders/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.DocumentLoader = (*Registry)(nil)

// Registry maps file extensions to loaders.
// It is itself a DocumentLoader that dispatches on the path extension.
type Registry struct {
	byExt map[string]driven.DocumentLoader
}

// NewRegistry creates an empty loader registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]driven.DocumentLoader),
	}
}

// NewDefaultRegistry creates a registry with all built-in loaders.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(pdf.New())
	r.Register(docx.New())
	r.Register(html.New())
	r.Register(eml.New())
	return r
}

// Register adds a loader for all of its extensions.
// A later registration for the same extension wins.
func (r *Registry) Register(loader driven.DocumentLoader) {
	for _, ext := range loader.Extensions() {
		r.byExt[strings.ToLower(ext)] = loader
	}
}

// ForPath returns the loader for a path's extension.
func (r *Registry) ForPath(path string) (driven.DocumentLoader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := r.byExt[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return nil, fmt.Errorf("%w: %w: extension %s", domain.ErrLoad, domain.ErrUnsupportedType, ext)
	}
	return loader, nil
}

// Name returns the loader name.
func (r *Registry) Name() string {
	return "registry"
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Units dispatches to the loader registered for the path's extension.
func (r *Registry) Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error] {
	loader, err := r.ForPath(path)
	if err != nil {
		return func(yield func(domain.Unit, error) bool) {
			yield(domain.Unit{}, err)
		}
	}
	return loader.Units(ctx, path)
}
