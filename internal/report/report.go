// Package report renders a ranked batch as XLSX, JSON or PDF.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dgallion1/bidrank/internal/rank"
)

// Format is an output format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatXLSX, FormatJSON, FormatPDF}

// ParseFormat accepts a format name or file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType is the MIME type for HTTP responses.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Filename is the conventional output name for a format.
func (f Format) Filename() string {
	return "ranked_output." + string(f)
}

// Write renders b in format f.
func Write(w io.Writer, f Format, b *rank.Batch) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, b)
	case FormatJSON:
		return WriteJSON(w, b)
	case FormatPDF:
		return WritePDF(w, b)
	}
	return fmt.Errorf("unknown report format %q", f)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
