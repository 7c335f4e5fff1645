package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bidrank/internal/document"
	"golang.org/x/text/unicode/norm"
)

// Parser converts raw document bytes into page-ordered text.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// Extraction failure reasons.
const (
	ReasonUnreadable  = "unreadable"
	ReasonEncrypted   = "encrypted"
	ReasonNoTextLayer = "no_text_layer"
	ReasonUnsupported = "unsupported_format"
)

// ExtractionError reports that a document produced no usable text.
type ExtractionError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Filename, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Filename, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
}

// Options tune parser construction.
type Options struct {
	FallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract parses a document and normalizes its text. Every failure,
// including a document with no text at all, is an *ExtractionError.
func Extract(r io.Reader, filename string, opts Options) (*document.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Reason: ReasonUnsupported, Err: err}
	}
	doc, err := safeParse(p, r, filename)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			return nil, ee
		}
		return nil, &ExtractionError{Filename: filename, Reason: ReasonUnreadable, Err: err}
	}
	for i, page := range doc.Pages {
		doc.Pages[i] = normalizeText(page)
	}
	if doc.Empty() {
		return nil, &ExtractionError{Filename: filename, Reason: ReasonNoTextLayer}
	}
	return doc, nil
}

// safeParse reports a panic inside a parser as an unreadable file.
func safeParse(p Parser, r io.Reader, filename string) (doc *document.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, &ExtractionError{Filename: filename, Reason: ReasonUnreadable, Err: fmt.Errorf("parser panic: %v", rec)}
		}
	}()
	return p.Parse(r, filename)
}

// normalizeText folds compatibility characters (ligatures, full-width
// forms, non-breaking spaces) and trims trailing whitespace per line.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}

func baseName(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
