// Package eml loads RFC 822 email messages.
package eml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"strings"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/loaders/html"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader handles saved email messages. The unit text is the From, To,
// Date and Subject headers followed by the body.
type Loader struct{}

// New creates a new email loader.
func New() *Loader {
	return &Loader{}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "eml"
}

// Extensions returns the file extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".eml"}
}

// Units yields the message as one unit.
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

		text, err := Extract(raw)
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

// Extract returns the readable text of a raw message.
func Extract(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}

	body, err := extractBody(msg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, h := range []string{"From", "To", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(h)); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", h, v)
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	return strings.TrimSpace(b.String()), nil
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value on failure.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func extractBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", fmt.Errorf("reading body: %w", readErr)
		}
		return string(body), nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(msg.Body, params["boundary"])
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if mediaType == "text/html" {
		return html.StripHTML(string(body)), nil
	}
	return string(body), nil
}

// extractMultipart prefers text/plain parts over text/html ones.
// Attachments and other media types are skipped.
func extractMultipart(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading multipart body: %w", err)
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "application/octet-stream"
		}
		content, readErr := io.ReadAll(part)
		part.Close()
		if readErr != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			textParts = append(textParts, string(content))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, html.StripHTML(string(content)))
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedErr := extractMultipart(bytes.NewReader(content), params["boundary"])
			if nestedErr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}
