// Package docx loads Word (OOXML) documents.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

const documentPart = "word/document.xml"

// Loader handles DOCX documents. The whole body is a single unit with
// paragraphs separated by blank lines.
type Loader struct{}

// New creates a new DOCX loader.
func New() *Loader {
	return &Loader{}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "docx"
}

// Extensions returns the file extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".docx"}
}

// Units yields the document body as one unit.
func (l *Loader) Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error] {
	return func(yield func(domain.Unit, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(domain.Unit{}, err)
			return
		}

		reader, err := zip.OpenReader(path)
		if err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: open %s: %w", domain.ErrLoad, path, err))
			return
		}
		defer reader.Close()

		text, err := extractDocumentText(&reader.Reader)
		if err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: %s: %w", domain.ErrLoad, path, err))
			return
		}

		yield(domain.Unit{
			Text:     text,
			Metadata: domain.UnitMetadata{SourceID: path, Position: 0},
		}, nil)
	}
}

// extractDocumentText extracts text from word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("missing %s", documentPart)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML joins non-empty paragraphs with blank lines.
func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", documentPart, err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range para.Runs {
			for _, text := range r.Text {
				b.WriteString(text.Content)
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}

	return strings.Join(paragraphs, "\n\n"), nil
}
