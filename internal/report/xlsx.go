package report

import (
	"fmt"
	"io"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/xuri/excelize/v2"
)

const (
	rankingSheet = "Ranking"
	issuesSheet  = "Issues"
)

var rankingHeaders = []string{
	"Rank",
	"Proposal",
	"Cost Score",
	"Technical Score",
	"Past Performance Score",
	"Total Score",
	"Extracted Cost",
	"Fallbacks",
	"Summary",
}

var issueHeaders = []string{"Proposal", "Stage", "Kind", "Section", "Fallback", "Detail"}

// WriteXLSX writes a workbook with one ranking row per proposal and an
// issues sheet with the batch audit trail.
func WriteXLSX(w io.Writer, b *rank.Batch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rankingSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("create issues sheet: %w", err)
	}

	writeRow(f, rankingSheet, 1, toAny(rankingHeaders))
	for i, p := range b.Proposals {
		var cost any = ""
		if p.Cost != nil {
			cost = *p.Cost
		}
		summary := p.Summary
		if summary == "" {
			summary = p.Excerpt
		}
		writeRow(f, rankingSheet, i+2, []any{
			p.Rank,
			p.ID,
			p.Score(proposal.Cost),
			p.Score(proposal.Technical),
			p.Score(proposal.PastPerformance),
			round2(p.Total),
			cost,
			p.Fallbacks(),
			truncate(summary, 500),
		})
	}

	writeRow(f, issuesSheet, 1, toAny(issueHeaders))
	for i, is := range b.Issues {
		writeRow(f, issuesSheet, i+2, []any{
			is.ProposalID, string(is.Stage), string(is.Kind), string(is.Section), is.Fallback, is.Detail,
		})
	}

	_ = f.SetColWidth(rankingSheet, "A", "A", 6)
	_ = f.SetColWidth(rankingSheet, "B", "B", 32)
	_ = f.SetColWidth(rankingSheet, "C", "G", 16)
	_ = f.SetColWidth(rankingSheet, "H", "H", 28)
	_ = f.SetColWidth(rankingSheet, "I", "I", 80)
	_ = f.SetColWidth(issuesSheet, "A", "E", 20)
	_ = f.SetColWidth(issuesSheet, "F", "F", 80)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
