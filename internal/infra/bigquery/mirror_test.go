package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

func TestToRow(t *testing.T) {
	exported := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		tx         domain.Transaction
		wantBucket string
		wantDesc   bool
	}{
		{
			name:       "expense gets bucket",
			tx:         domain.Transaction{ID: "a", Date: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("12500.50"), Category: "Tabungan", Type: domain.Expense, Description: "celengan"},
			wantBucket: "S",
			wantDesc:   true,
		},
		{
			name: "income has no bucket",
			tx:   domain.Transaction{ID: "b", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(500000), Category: "Uang Saku", Type: domain.Income},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := ToRow(tt.tx, exported)
			assert.Equal(t, tt.tx.ID, row.TransactionID)
			assert.Equal(t, "2024-05", row.Month)
			assert.Equal(t, tt.tx.Date.Day(), row.TransactionDate.Day)
			assert.Equal(t, tt.tx.Amount.String(), decimal.NewFromBigRat(row.Amount, 2).String())
			assert.Equal(t, tt.wantBucket, row.Bucket)
			assert.Equal(t, tt.wantDesc, row.Description.Valid)
			assert.Equal(t, exported, row.ExportedTS)
		})
	}
}

func TestRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	require.NoError(t, err)

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.NumericFieldType, types["amount"])
	assert.Equal(t, bigquery.DateFieldType, types["transaction_date"])
	assert.Equal(t, bigquery.TimestampFieldType, types["exported_ts"])
}
