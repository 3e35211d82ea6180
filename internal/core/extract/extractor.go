// Package extract turns raw source content into a single normalized UTF-8
// text blob. The three source variants (file, url, text) are dispatched
// here once; everything downstream of the extractor works on plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/Syntra/internal/core"
)

// Input is the closed set of extractable source variants.
type Input interface {
	kind() string
}

// FileInput is a raw uploaded document (PDF, DOCX, plain text, ...).
type FileInput struct {
	Data        []byte
	ContentType string
}

// URLInput is a web page to fetch and reduce to its main content.
type URLInput struct {
	URL string
}

// TextInput is text pasted directly by the user.
type TextInput struct {
	Text string
}

func (FileInput) kind() string { return "file" }
func (URLInput) kind() string  { return "url" }
func (TextInput) kind() string { return "text" }

// Extractor implements text extraction for all source variants.
type Extractor struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "extractor"),
	}
}

// Extract produces normalized text for the given input, or an
// ExtractionError when the content is unsupported, unreadable, or empty.
func (e *Extractor) Extract(ctx context.Context, in Input) (string, error) {
	var (
		text string
		err  error
	)
	switch v := in.(type) {
	case FileInput:
		text, err = e.extractFile(ctx, v)
	case URLInput:
		text, err = e.extractURL(ctx, v)
	case TextInput:
		text = v.Text
	default:
		err = fmt.Errorf("unsupported input variant %T", in)
	}
	if err != nil {
		return "", &core.ExtractionError{Err: err}
	}

	text = Normalize(text)
	if text == "" {
		return "", &core.ExtractionError{Err: fmt.Errorf("%s input yielded no text", in.kind())}
	}
	return text, nil
}

// extractFile converts document bytes via docconv. docconv walks paginated
// formats page by page and concatenates what it can read; we only fail when
// the whole document yields nothing.
func (e *Extractor) extractFile(ctx context.Context, in FileInput) (string, error) {
	if len(in.Data) == 0 {
		return "", fmt.Errorf("empty file")
	}

	res, err := docconv.Convert(bytes.NewReader(in.Data), in.ContentType, false)
	if err != nil {
		return "", fmt.Errorf("convert %q: %w", in.ContentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.logger.Debug("file converted", "content_type", in.ContentType, "chars", len(res.Body))
	return res.Body, nil
}

// Normalize collapses line endings and whitespace-only lines so the chunker
// sees one stable representation regardless of the source variant.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
