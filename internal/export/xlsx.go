// Package export renders a period's transactions as a spreadsheet or PDF
// report.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// SheetName is the worksheet that holds the report.
const SheetName = "Laporan"

var headers = []string{"Tanggal", "Tipe", "Kategori", "Deskripsi", "Jumlah"}

// Labels of the totals block below the transaction rows.
const (
	LabelIncome  = "Total Pemasukan"
	LabelExpense = "Total Pengeluaran"
	LabelBalance = "Saldo"
)

func typeLabel(t domain.TransactionType) string {
	if t == domain.Income {
		return "Pemasukan"
	}
	return "Pengeluaran"
}

// WriteXLSX writes txs, in the given order, followed by a totals block.
func WriteXLSX(w io.Writer, txs []domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("WriteXLSX: naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("WriteXLSX: creating style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("WriteXLSX: creating style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("WriteXLSX: header: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}

	for r, t := range txs {
		amount, _ := t.Amount.Float64()
		row := []any{t.Date.UTC().Format("2006-01-02"), typeLabel(t.Type), t.Category, t.Description, amount}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("WriteXLSX: row %d: %w", r+2, err)
			}
		}
	}

	income := domain.SumAmounts(txs, domain.Income)
	expense := domain.SumAmounts(txs, domain.Expense)
	totals := []struct {
		label string
		value float64
	}{
		{LabelIncome, income.InexactFloat64()},
		{LabelExpense, expense.InexactFloat64()},
		{LabelBalance, income.Sub(expense).InexactFloat64()},
	}
	start := len(txs) + 3
	for i, t := range totals {
		row := start + i
		if err := f.SetCellValue(SheetName, fmt.Sprintf("D%d", row), t.label); err != nil {
			return fmt.Errorf("WriteXLSX: totals: %w", err)
		}
		if err := f.SetCellValue(SheetName, fmt.Sprintf("E%d", row), t.value); err != nil {
			return fmt.Errorf("WriteXLSX: totals: %w", err)
		}
	}
	last := start + len(totals) - 1
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("D%d", start), fmt.Sprintf("D%d", last), bold); err != nil {
		return fmt.Errorf("WriteXLSX: totals style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "E2", fmt.Sprintf("E%d", last), money); err != nil {
		return fmt.Errorf("WriteXLSX: amount style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "E", 18); err != nil {
		return fmt.Errorf("WriteXLSX: column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteXLSX: writing workbook: %w", err)
	}
	return nil
}
