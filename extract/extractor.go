// Package extract provides text extraction from uploaded documents.
package extract

import (
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/poiesic/kbot/core"
)

// Supported content types.
const (
	ContentTypePDF      = "application/pdf"
	ContentTypePlain    = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Document is a raw uploaded document.
type Document struct {
	Name        string // Original file name, used for warnings and as a type hint
	ContentType string // MIME type; empty means PDF unless Name says otherwise
	Data        []byte
}

// Extractor extracts plain text from documents. It is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "extractor")
	return e
}

// Extract returns the text content of doc.
// Every failure wraps core.ErrExtraction; unknown types wrap core.ErrUnsupportedDocument.
func (e *Extractor) Extract(doc Document) (string, error) {
	contentType := resolveContentType(doc)
	e.logger.Debug("extracting document", "name", doc.Name, "contentType", contentType, "bytes", len(doc.Data))

	switch contentType {
	case ContentTypePDF:
		return e.extractPDF(doc.Data)
	case ContentTypePlain, ContentTypeMarkdown:
		return extractPlain(doc.Data), nil
	case ContentTypeXLSX:
		return extractXLSX(doc.Data)
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedDocument, contentType)
	}
}

// resolveContentType normalizes the declared content type, falling back to the
// file extension and finally to PDF.
func resolveContentType(doc Document) string {
	if doc.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(doc.ContentType)
		if err != nil {
			return strings.ToLower(strings.TrimSpace(doc.ContentType))
		}
		return mediaType
	}
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".txt":
		return ContentTypePlain
	case ".md", ".markdown":
		return ContentTypeMarkdown
	case ".xlsx":
		return ContentTypeXLSX
	default:
		return ContentTypePDF
	}
}
