// Package pdf loads PDF documents by shelling out to pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"unicode/utf8"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const toolName = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Loader handles PDF documents.
type Loader struct {
	runner CommandRunner
}

// New creates a PDF loader that runs the installed pdftotext.
func New() *Loader {
	return &Loader{runner: execRunner{}}
}

// NewWithRunner creates a PDF loader with a custom command runner.
func NewWithRunner(runner CommandRunner) *Loader {
	return &Loader{runner: runner}
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install pdftotext.
func InstallInstructions() string {
	return `pdftotext is required to load PDF files. Install poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "pdf"
}

// Extensions returns the file extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".pdf"}
}

// Units yields one unit per page, in page order.
// pdftotext ends every page with a form feed.
func (l *Loader) Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error] {
	return func(yield func(domain.Unit, error) bool) {
		if _, err := os.Stat(path); err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: %w", domain.ErrLoad, err))
			return
		}

		out, err := l.runner.Run(ctx, toolName, "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: pdftotext failed for %s: %w", domain.ErrLoad, path, err))
			return
		}
		if !utf8.Valid(out) {
			yield(domain.Unit{}, fmt.Errorf("%w: pdftotext produced invalid UTF-8 for %s", domain.ErrLoad, path))
			return
		}

		pages := bytes.Split(out, []byte{'\f'})
		if n := len(pages); n > 0 && len(bytes.TrimSpace(pages[n-1])) == 0 {
			pages = pages[:n-1]
		}

		for i, page := range pages {
			unit := domain.Unit{
				Text:     string(page),
				Metadata: domain.UnitMetadata{SourceID: path, Position: i},
			}
			if !yield(unit, nil) {
				return
			}
		}
	}
}
