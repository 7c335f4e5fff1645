package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/bidrank/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf requires a ReaderAt+size and pdftotext a path, so spool to disk.
	tmp, err := os.CreateTemp("", "bidrank-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath)
	if errors.Is(err, pdflib.ErrInvalidPassword) {
		return nil, &ExtractionError{Filename: filename, Reason: ReasonEncrypted, Err: err}
	}
	if (err != nil || blank(pages)) && p.FallbackPdftotext {
		if text, ferr := extractPdftotext(tmpPath); ferr == nil {
			pages, err = strings.Split(strings.TrimSuffix(text, "\f"), "\f"), nil
		}
	}
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Reason: ReasonUnreadable, Err: err}
	}
	if blank(pages) {
		// Scanned or image-only PDFs have pages but no text operators.
		return nil, &ExtractionError{Filename: filename, Reason: ReasonNoTextLayer}
	}

	return &document.Document{Name: baseName(filename), Pages: pages}, nil
}

// extractPDFPages returns one entry per page so page breaks survive even
// when a page yields no text. ledongthuc/pdf panics on malformed objects;
// those panics come back as errors.
func extractPDFPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	var pageErr error
	for i := 1; i <= numPages; i++ {
		text, err := pageText(reader.Page(i))
		if err != nil {
			pageErr = fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	// A document whose only text sits on broken pages is unreadable, not
	// image-only.
	if pageErr != nil && blank(pages) {
		return nil, pageErr
	}
	return pages, nil
}

func pageText(page pdflib.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed page: %v", r)
		}
	}()
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
