// Package html loads HTML documents as readable text.
package html

import (
	"context"
	"fmt"
	"html"
	"iter"
	"os"
	"regexp"
	"strings"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader handles HTML documents. Markup is stripped and block elements
// become paragraph breaks.
type Loader struct{}

// New creates a new HTML loader.
func New() *Loader {
	return &Loader{}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "html"
}

// Extensions returns the file extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Units yields the document text as one unit.
func (l *Loader) Units(ctx context.Context, path string) iter.Seq2[domain.Unit, error] {
	return func(yield func(domain.Unit, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(domain.Unit{}, err)
			return
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			yield(domain.Unit{}, fmt.Errorf("%w: %w", domain.ErrLoad, err))
			return
		}

		yield(domain.Unit{
			Text:     StripHTML(string(raw)),
			Metadata: domain.UnitMetadata{SourceID: path, Position: 0},
		}, nil)
	}
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag        = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	lineBreaks    = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
)

// StripHTML removes markup and returns the readable text. Lines within a
// block are kept together; blocks are separated by a blank line.
func StripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, htmlComments} {
		content = re.ReplaceAllString(content, "")
	}

	content = blockElements.ReplaceAllString(content, "\n\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var blocks []string
	for _, block := range strings.Split(content, "\n\n") {
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(blocks, "\n\n")
}
