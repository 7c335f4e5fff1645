package parser

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/dgallion1/bidrank/internal/document"
	"github.com/go-pdf/fpdf"
)

// newTestPDF generates a PDF with one line of text per page.
func newTestPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Cell(40, 10, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("failed to generate test PDF: %v", err)
	}
	return buf.Bytes()
}

func TestPDFParser_PagesInOrder(t *testing.T) {
	data := newTestPDF(t, "Technical Approach", "Cost 1000")

	doc, err := Extract(bytes.NewReader(data), "vendor.pdf", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "vendor" {
		t.Errorf("expected name %q, got %q", "vendor", doc.Name)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if !strings.Contains(doc.Pages[0], "Technical Approach") {
		t.Errorf("page 1 missing text: %q", doc.Pages[0])
	}
	if !strings.Contains(doc.Pages[1], "Cost 1000") {
		t.Errorf("page 2 missing text: %q", doc.Pages[1])
	}
	if strings.Count(doc.Text(), "\f") != 1 {
		t.Errorf("expected one page break in %q", doc.Text())
	}
}

func TestPDFParser_NoTextLayer(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.Rect(10, 10, 50, 50, "F")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("failed to generate test PDF: %v", err)
	}

	_, err := Extract(&buf, "scan.pdf", Options{})
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T (%v)", err, err)
	}
	if ee.Reason != ReasonNoTextLayer {
		t.Errorf("expected reason %q, got %q", ReasonNoTextLayer, ee.Reason)
	}
}

func TestPDFParser_Garbage(t *testing.T) {
	_, err := Extract(strings.NewReader("not a pdf at all"), "broken.pdf", Options{})
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T (%v)", err, err)
	}
	if ee.Reason != ReasonUnreadable {
		t.Errorf("expected reason %q, got %q", ReasonUnreadable, ee.Reason)
	}
}

func TestPDFParser_Encrypted(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetProtection(fpdf.CnProtectPrint, "user", "owner")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(40, 10, "Cost 1000")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("failed to generate test PDF: %v", err)
	}

	_, err := Extract(&buf, "locked.pdf", Options{})
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T (%v)", err, err)
	}
	if ee.Reason != ReasonEncrypted {
		t.Errorf("expected reason %q, got %q", ReasonEncrypted, ee.Reason)
	}
}

func TestPDFParser_CorruptObjectIsUnreadable(t *testing.T) {
	data := newTestPDF(t, "Technical Approach", "Cost 1000")
	mid := len(data) / 2
	copy(data[mid:], "ZZZZZZZZZZZZ")

	_, err := Extract(bytes.NewReader(data), "damaged.pdf", Options{})
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T (%v)", err, err)
	}
	if ee.Reason != ReasonUnreadable && ee.Reason != ReasonNoTextLayer {
		t.Errorf("unexpected reason %q", ee.Reason)
	}
}

type panickyParser struct{}

func (panickyParser) Parse(io.Reader, string) (*document.Document, error) {
	panic("unexpected keyword parsing object")
}

func TestSafeParse_RecoversPanic(t *testing.T) {
	doc, err := safeParse(panickyParser{}, strings.NewReader(""), "bad.pdf")
	if doc != nil {
		t.Errorf("expected no document, got %+v", doc)
	}
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T (%v)", err, err)
	}
	if ee.Reason != ReasonUnreadable {
		t.Errorf("expected reason %q, got %q", ReasonUnreadable, ee.Reason)
	}
	if !strings.Contains(ee.Error(), "unexpected keyword") {
		t.Errorf("expected panic value in error, got %q", ee.Error())
	}
}
