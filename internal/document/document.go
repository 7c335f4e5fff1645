package document

import "strings"

// PageBreak separates pages in Document.Text.
const PageBreak = "\f"

// Document is the plain text of one extracted proposal file.
type Document struct {
	Name  string   // Source filename without extension
	Pages []string // Page text in reading order (one entry for unpaginated formats)
}

// Text joins pages with form feeds, preserving reading order.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	return strings.Join(d.Pages, PageBreak)
}

// Empty reports whether the document carries no non-whitespace text.
func (d *Document) Empty() bool {
	if d == nil {
		return true
	}
	for _, p := range d.Pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// Builder accumulates headings and paragraphs for structured formats
// (Markdown, HTML, DOCX). Each heading lands on its own line so the
// segmenter can find it.
type Builder struct {
	buf strings.Builder
}

// Heading appends a heading line.
func (b *Builder) Heading(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	b.sep()
	b.buf.WriteString(title)
}

// Paragraph appends a block of body text.
func (b *Builder) Paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.sep()
	b.buf.WriteString(text)
}

func (b *Builder) sep() {
	if b.buf.Len() > 0 {
		b.buf.WriteString("\n\n")
	}
}

// Document returns a single-page document with the accumulated text.
func (b *Builder) Document(name string) *Document {
	if b.buf.Len() == 0 {
		return &Document{Name: name}
	}
	return &Document{Name: name, Pages: []string{b.buf.String()}}
}
