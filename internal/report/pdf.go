package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/go-pdf/fpdf"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var pdfColumns = []pdfColumn{
	{"Rank", 12, "C"},
	{"Proposal", 62, "L"},
	{"Cost", 22, "R"},
	{"Technical", 22, "R"},
	{"Past Perf.", 22, "R"},
	{"Total", 22, "R"},
}

// WritePDF writes a printable ranking summary.
func WritePDF(w io.Writer, b *rank.Batch) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Proposal Ranking", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	meta := []string{
		fmt.Sprintf("Batch %s, %s", b.ID, b.CreatedAt.Format("2006-01-02 15:04 MST")),
		fmt.Sprintf("Scoring: %s%s", b.Strategy, modelSuffix(b.Model)),
		fmt.Sprintf("Weights: cost %.2f, technical %.2f, past performance %.2f",
			b.Weights.Cost, b.Weights.Technical, b.Weights.PastPerformance),
	}
	for _, line := range meta {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(225, 230, 240)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, p := range b.Proposals {
		cells := []string{
			fmt.Sprintf("%d", p.Rank),
			truncate(p.ID, 34),
			fmt.Sprintf("%.2f", p.Score(proposal.Cost)),
			fmt.Sprintf("%.2f", p.Score(proposal.Technical)),
			fmt.Sprintf("%.2f", p.Score(proposal.PastPerformance)),
			fmt.Sprintf("%.2f", p.Total),
		}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 6, tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	for _, p := range b.Proposals {
		if p.Summary == "" && len(p.Issues) == 0 {
			continue
		}
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("#%d %s", p.Rank, p.ID)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		if p.Summary != "" {
			pdf.MultiCell(0, 4.5, tr(p.Summary), "", "L", false)
		}
		for _, is := range p.Issues {
			pdf.MultiCell(0, 4.5, tr(issueLine(is)), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf write: %w", err)
	}
	return nil
}

func modelSuffix(model string) string {
	if model == "" {
		return ""
	}
	return " (" + model + ")"
}

func issueLine(is proposal.Issue) string {
	parts := []string{string(is.Kind)}
	if is.Section != "" {
		parts = append(parts, string(is.Section))
	}
	if is.Fallback != "" {
		parts = append(parts, "fallback "+is.Fallback)
	}
	line := "! " + strings.Join(parts, ", ")
	if is.Detail != "" {
		line += ": " + is.Detail
	}
	return line
}
