package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// ReportTitle heads the PDF report.
const ReportTitle = "Laporan Keuangan SakuPintar"

// pdfCompression is switched off in tests so page text can be searched.
var pdfCompression = true

var pdfColumnWidths = []float64{25, 28, 40, 62, 35}

// WritePDF writes txs as a printable report for period: a title, the
// income, expense and balance totals, then one table row per transaction
// in the given order.
func WritePDF(w io.Writer, period string, txs []domain.Transaction) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(pdfCompression)
	pdf.SetTitle(ReportTitle, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(16, 185, 129)
	pdf.CellFormat(0, 10, ReportTitle, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, tr("Periode: "+period), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	income := domain.SumAmounts(txs, domain.Income)
	expense := domain.SumAmounts(txs, domain.Expense)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(50, 50, 50)
	for _, line := range []string{
		LabelIncome + ": " + domain.FormatRupiah(income),
		LabelExpense + ": " + domain.FormatRupiah(expense),
		"Sisa " + LabelBalance + ": " + domain.FormatRupiah(income.Sub(expense)),
	} {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(16, 185, 129)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(pdfColumnWidths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(50, 50, 50)
	pdf.SetFillColor(240, 253, 244)
	for r, t := range txs {
		desc := t.Description
		if desc == "" {
			desc = "-"
		}
		cells := []string{
			t.Date.UTC().Format("2006-01-02"),
			typeLabel(t.Type),
			tr(t.Category),
			tr(desc),
			domain.FormatRupiah(t.Amount),
		}
		fill := r%2 == 1
		for i, c := range cells {
			align := "L"
			if i == len(cells)-1 {
				align = "R"
			}
			pdf.CellFormat(pdfColumnWidths[i], 7, c, "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("WritePDF: %w", err)
	}
	return nil
}
