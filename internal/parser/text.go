package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/bidrank/internal/document"
)

// TextParser handles plain text files. Form feeds split pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pages []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		for {
			i := strings.IndexByte(line, '\f')
			if i < 0 {
				break
			}
			current.WriteString(line[:i])
			pages = append(pages, current.String())
			current.Reset()
			line = line[i+1:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if s := current.String(); s != "" || len(pages) > 0 {
		pages = append(pages, strings.TrimSuffix(s, "\n"))
	}

	return &document.Document{Name: baseName(filename), Pages: pages}, nil
}
