package report

import (
	"context"
	"io"
	"time"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders the workspace's tasks as a landscape A4 table.
func (s *Service) WritePDF(ctx context.Context, workspaceID string, w io.Writer) error {
	rows, err := s.Store.ExportRows(ctx, workspaceID)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Compliance task report", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Compliance task report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, "Generated "+time.Now().UTC().Format("02 Jan 2006 15:04 UTC"))
	pdf.Ln(10)

	widths := []float64{28, 70, 38, 35, 45, 40, 22}
	header := []string{"Compliance Id", "Title", "Operating Unit", "Department", "Owner", "Status", "Due Date"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		due := ""
		if r.DueDate != nil {
			due = r.DueDate.Format("2006-01-02")
		}
		cells := []string{r.ComplianceID, truncate(r.Title, 60), truncate(r.EntityName, 30),
			truncate(r.Department, 28), r.OwnerEmail, r.Status, due}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

// truncate shortens s to at most max characters, cutting on rune boundaries
// so multi-byte text is never split mid-sequence.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
