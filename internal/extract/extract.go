// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/shortlist/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Extractor detects the document format by content and returns its text.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the document text. PDF and UTF-8 plain text are supported.
func (e *Extractor) Extract(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	var (
		text string
		err  error
	)
	switch {
	case bytes.HasPrefix(raw, pdfMagic):
		text, err = pdfText(raw)
	case utf8.Valid(raw):
		text = string(raw)
	default:
		return "", fmt.Errorf("unsupported document format: %w", domain.ErrExtractionFailure)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("document has no text: %w", domain.ErrExtractionFailure)
	}
	return text, nil
}

func pdfText(raw []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v: %w", r, domain.ErrExtractionFailure)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w: %w", domain.ErrExtractionFailure, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w: %w", domain.ErrExtractionFailure, err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("pdf text: %w: %w", domain.ErrExtractionFailure, err)
	}
	return buf.String(), nil
}
