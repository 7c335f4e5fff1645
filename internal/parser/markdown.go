package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/bidrank/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	// Headings land on their own line without the leading #s so the
	// segmenter sees the same shape it gets from PDFs.
	var b document.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.Heading(string(node.Text(src)))
		case *ast.ThematicBreak:
			continue
		default:
			b.Paragraph(extractText(n, src))
		}
	}
	return b.Document(baseName(filename)), nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		s := extractText(c, src)
		if s == "" {
			continue
		}
		buf.WriteString(s)
		if c.Type() == ast.TypeBlock {
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String())
}
