package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType partitions transactions and categories.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// ParseTransactionType accepts INCOME or EXPENSE in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", fmt.Errorf("invalid transaction type %q: want INCOME or EXPENSE", s)
}

// Valid reports whether t is one of the two known types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is a single income or expense record. Once stored it is never
// updated, only deleted. Category is a free string and is not guaranteed to
// resolve to a registered category.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
}

// Month returns the month key the transaction belongs to.
func (t Transaction) Month() string {
	return MonthKey(t.Date)
}

// SumAmounts totals the amounts of txs with the given type.
func SumAmounts(txs []Transaction, typ TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// FilterByType keeps the transactions of one type, preserving order.
func FilterByType(txs []Transaction, typ TransactionType) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}
