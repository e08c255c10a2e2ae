package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	calls  int
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls++
	m.name = name
	m.args = args
	return m.output, m.err
}

func fakePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "document.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake pdf content"), 0o600))
	return path
}

func collect(l *Loader, path string) ([]domain.Unit, error) {
	var units []domain.Unit
	for unit, err := range l.Units(context.Background(), path) {
		if err != nil {
			return units, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func TestNew(t *testing.T) {
	loader := New()
	require.NotNil(t, loader)
	assert.IsType(t, execRunner{}, loader.runner)
	assert.Equal(t, "pdf", loader.Name())
	assert.Equal(t, []string{".pdf"}, loader.Extensions())
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.DocumentLoader = (*Loader)(nil)
}

func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	loader := NewWithRunner(runner)
	require.NotNil(t, loader)
	assert.Equal(t, runner, loader.runner)
}

func TestUnits_Pages(t *testing.T) {
	runner := &mockRunner{output: []byte("Page one text.\n\fPage two text.\n\f")}
	path := fakePDF(t)

	units, err := collect(NewWithRunner(runner), path)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Page one text.\n", units[0].Text)
	assert.Equal(t, 0, units[0].Metadata.Position)
	assert.Equal(t, "Page two text.\n", units[1].Text)
	assert.Equal(t, 1, units[1].Metadata.Position)
	assert.Equal(t, path, units[1].Metadata.SourceID)

	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", path, "-"}, runner.args)
}

func TestUnits_RestartRunsAgain(t *testing.T) {
	runner := &mockRunner{output: []byte("only page\f")}
	seq := NewWithRunner(runner).Units(context.Background(), fakePDF(t))

	for range seq {
	}
	for range seq {
	}
	assert.Equal(t, 2, runner.calls)
}

func TestUnits_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}

	_, err := collect(NewWithRunner(runner), fakePDF(t))
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestUnits_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := collect(NewWithRunner(runner), fakePDF(t))
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestUnits_MissingFile(t *testing.T) {
	runner := &mockRunner{}

	_, err := collect(NewWithRunner(runner), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.Zero(t, runner.calls, "runner must not be called for a missing file")
}

func TestUnits_InvalidUTF8(t *testing.T) {
	runner := &mockRunner{output: []byte{0xff, 0xfe, '\f'}}

	_, err := collect(NewWithRunner(runner), fakePDF(t))
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Error(t, ErrPDFToolNotFound)
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestUnits_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}

	// The fake file is not a real PDF, so pdftotext must fail cleanly.
	_, err := collect(New(), fakePDF(t))
	assert.ErrorIs(t, err, domain.ErrLoad)
}
