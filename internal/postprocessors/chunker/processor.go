// Package chunker provides a recursive, separator-aware text chunking processor.
package chunker

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// Processor splits document units into bounded, overlapping passages.
// It implements the PostProcessor interface.
//
// Text is split on the first separator that occurs in it, coarsest first.
// Pieces still longer than the piece bound are split again with the
// remaining, finer separators. Pieces are then merged greedily into
// passages of at most chunkSize characters, each starting with the last
// overlap characters of the previous passage of the same unit.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the maximum passage length in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between consecutive passages in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithSeparators sets the separators, coarsest first.
// An empty list keeps the defaults.
func WithSeparators(separators []string) Option {
	return func(p *Processor) {
		if len(separators) > 0 {
			p.separators = slices.Clone(separators)
		}
	}
}

// New creates a new chunker processor with the given options.
// Returns an error wrapping domain.ErrConfig if the overlap is not smaller
// than the chunk size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize:  domain.DefaultChunkSize,
		overlap:    domain.DefaultChunkOverlap,
		separators: domain.DefaultSeparators(),
	}

	for _, opt := range opts {
		opt(p)
	}

	settings := domain.IngestSettings{ChunkSize: p.chunkSize, ChunkOverlap: p.overlap}
	if err := settings.ValidateChunking(); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured maximum passage length.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits every unit of the document into passages.
// Input passages are ignored; this processor creates new passages from the
// document units. Passages never cross a unit boundary, and blank units
// produce no passages. SequenceIndex runs across the whole document.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Passage) ([]domain.Passage, error) {
	if doc == nil {
		return nil, nil
	}

	var passages []domain.Passage
	for _, unit := range doc.Units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(unit.Text) == "" {
			continue
		}

		meta := domain.PassageMetadata{
			SourceID: unit.Metadata.SourceID,
			Position: unit.Metadata.Position,
		}
		if meta.SourceID == "" {
			meta.SourceID = doc.SourceID
		}

		for _, pass := range p.SplitText(unit.Text) {
			pass.Metadata = meta
			pass.SequenceIndex = len(passages)
			passages = append(passages, pass)
		}
	}

	return passages, nil
}

// SplitText splits a single text into passages without metadata.
func (p *Processor) SplitText(text string) []domain.Passage {
	pieces := p.split(text, p.separators)
	return p.merge(pieces)
}

// pieceBound is the longest piece that still fits in a passage after an
// overlap prefix.
func (p *Processor) pieceBound() int {
	return p.chunkSize - p.overlap
}

// split breaks text into pieces no longer than the piece bound, keeping
// every separator attached to the end of the piece before it. A piece that
// no remaining separator can break is returned whole.
func (p *Processor) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= p.pieceBound() {
		return []string{text}
	}

	for i, sep := range separators {
		if sep == "" {
			return splitRunes(text)
		}
		if !strings.Contains(text, sep) {
			continue
		}

		finer := separators[i+1:]
		var pieces []string
		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) <= p.pieceBound() {
				pieces = append(pieces, part)
				continue
			}
			pieces = append(pieces, p.split(part, finer)...)
		}
		return pieces
	}

	return []string{text}
}

// merge packs pieces greedily into passages. Every passage after the first
// starts with the tail of the previous one. The tail shrinks when the next
// piece would not fit behind a full overlap; only a piece longer than the
// chunk size makes a passage oversized.
func (p *Processor) merge(pieces []string) []domain.Passage {
	var (
		passages  []domain.Passage
		prefix    string
		prefLen   int
		core      strings.Builder
		coreLen   int
		oversized bool
	)

	flush := func() {
		text := prefix + core.String()
		length := prefLen + coreLen
		passages = append(passages, domain.Passage{
			Text:       text,
			OverlapLen: prefLen,
			Oversized:  oversized,
		})
		prefLen = min(p.overlap, length)
		prefix = domain.LastRunes(text, prefLen)
		core.Reset()
		coreLen = 0
		oversized = false
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if coreLen > 0 && prefLen+coreLen+n > p.chunkSize {
			flush()
		}
		if coreLen == 0 && prefLen+n > p.chunkSize && n <= p.chunkSize {
			prefLen = p.chunkSize - n
			prefix = domain.LastRunes(prefix, prefLen)
		}
		if n > p.chunkSize {
			oversized = true
		}
		core.WriteString(piece)
		coreLen += n
	}
	if coreLen > 0 {
		flush()
	}

	return passages
}

// splitRunes splits text into single characters. Invalid bytes are kept
// as they are.
func splitRunes(text string) []string {
	pieces := make([]string, 0, len(text))
	for i := 0; i < len(text); {
		_, w := utf8.DecodeRuneInString(text[i:])
		pieces = append(pieces, text[i:i+w])
		i += w
	}
	return pieces
}
