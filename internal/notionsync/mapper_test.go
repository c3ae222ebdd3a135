package notionsync

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

func TestTransactionToNotionProperties(t *testing.T) {
	tests := []struct {
		name       string
		tx         domain.Transaction
		wantTitle  string
		wantBucket bool
	}{
		{
			name:       "expense with description",
			tx:         domain.Transaction{ID: "t1", Date: time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(15000), Category: "Makanan", Description: "nasi goreng", Type: domain.Expense},
			wantTitle:  "nasi goreng",
			wantBucket: true,
		},
		{
			name:      "income falls back to category",
			tx:        domain.Transaction{ID: "t2", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(1000000), Category: "Uang Saku", Type: domain.Income},
			wantTitle: "Uang Saku",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := TransactionToNotionProperties(tt.tx)

			title := props[PropTitle].(notionapi.TitleProperty)
			assert.Equal(t, tt.wantTitle, title.Title[0].Text.Content)

			amount := props[PropAmount].(notionapi.NumberProperty)
			assert.Equal(t, tt.tx.Amount.InexactFloat64(), amount.Number)

			month := props[PropMonth].(notionapi.RichTextProperty)
			assert.Equal(t, "2024-03", month.RichText[0].Text.Content)

			typ := props[PropType].(notionapi.SelectProperty)
			assert.Equal(t, string(tt.tx.Type), typ.Select.Name)

			_, hasBucket := props[PropBucket]
			assert.Equal(t, tt.wantBucket, hasBucket)
		})
	}
}

func TestDebtToNotionProperties(t *testing.T) {
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	props := DebtToNotionProperties(domain.DebtRecord{
		ID: "d1", Person: "Budi", Amount: decimal.NewFromInt(50000),
		Date: due.AddDate(0, -1, 0), DueDate: &due, Type: domain.Payable, Status: domain.Unpaid,
	})

	assert.Contains(t, props, PropDueDate)
	assert.NotContains(t, props, PropTitle)
	status := props[PropStatus].(notionapi.SelectProperty)
	assert.Equal(t, "UNPAID", status.Select.Name)
}
