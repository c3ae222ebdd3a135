package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

func TestWriteXLSX(t *testing.T) {
	txs := []domain.Transaction{
		{Date: time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC), Type: domain.Expense, Category: "Makanan", Description: "bakso", Amount: decimal.NewFromInt(15000)},
		{Date: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), Type: domain.Income, Category: "Uang Saku", Amount: decimal.NewFromInt(500000)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, txs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"2024-05-03", "Pengeluaran", "Makanan", "bakso", "15000"}, rows[1])
	assert.Equal(t, "Pemasukan", rows[2][1])

	balance, err := f.GetCellValue(SheetName, "E7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "485000", balance)
	label, err := f.GetCellValue(SheetName, "D5")
	require.NoError(t, err)
	assert.Equal(t, LabelIncome, label)
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))
	assert.NotZero(t, buf.Len())
}

func TestWritePDF(t *testing.T) {
	pdfCompression = false
	t.Cleanup(func() { pdfCompression = true })

	txs := []domain.Transaction{
		{Date: time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC), Type: domain.Expense, Category: "Makanan", Description: "bakso", Amount: decimal.NewFromInt(15000)},
		{Date: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), Type: domain.Income, Category: "Uang Saku", Amount: decimal.NewFromInt(500000)},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "2024-05", txs))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "%PDF-"))
	assert.Contains(t, out, ReportTitle)
	assert.Contains(t, out, "Periode: 2024-05")
	assert.Contains(t, out, "Rp 485.000")
	assert.Contains(t, out, "bakso")
	assert.Contains(t, out, "Uang Saku")
}

func TestWritePDF_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "Semua", nil))
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
}
