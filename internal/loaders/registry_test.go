package loaders

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

type stubLoader struct {
	exts []string
	text string
}

func (s *stubLoader) Name() string         { return "stub" }
func (s *stubLoader) Extensions() []string { return s.exts }
func (s *stubLoader) Units(_ context.Context, path string) iter.Seq2[domain.Unit, error] {
	return func(yield func(domain.Unit, error) bool) {
		yield(domain.Unit{Text: s.text, Metadata: domain.UnitMetadata{SourceID: path}}, nil)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	exts := r.Extensions()
	for _, ext := range []string{".txt", ".md", ".pdf", ".docx", ".html", ".eml"} {
		assert.Contains(t, exts, ext)
	}
	assert.IsIncreasing(t, exts)
	assert.Equal(t, "registry", r.Name())
}

func TestRegistry_ForPath(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		path string
		name string
	}{
		{"notes.txt", "plaintext"},
		{"NOTES.TXT", "plaintext"},
		{"README", "plaintext"},
		{"inbox/mail.eml", "eml"},
		{"report.pdf", "pdf"},
		{"letter.docx", "docx"},
		{"index.htm", "html"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loader, err := r.ForPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.name, loader.Name())
		})
	}
}

func TestRegistry_ForPath_Unsupported(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.ForPath("image.png")
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Contains(t, err.Error(), ".png")
}

func TestRegistry_Register_Overrides(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(&stubLoader{exts: []string{".TXT"}, text: "stubbed"})

	loader, err := r.ForPath("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "stub", loader.Name())
}

func TestRegistry_Units(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody"), 0o600))

	var units []domain.Unit
	for unit, err := range NewDefaultRegistry().Units(context.Background(), path) {
		require.NoError(t, err)
		units = append(units, unit)
	}

	require.Len(t, units, 1)
	assert.Equal(t, "# Title\n\nBody", units[0].Text)
}

func TestRegistry_Units_Unsupported(t *testing.T) {
	count := 0
	for _, err := range NewRegistry().Units(context.Background(), "file.xyz") {
		count++
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	}
	assert.Equal(t, 1, count)
}
