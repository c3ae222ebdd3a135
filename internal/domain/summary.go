package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the amount spent or earned under one category name.
type CategoryTotal struct {
	Category string          `json:"category"`
	Type     TransactionType `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthlySummary aggregates a set of transactions. It is always derived and
// never stored.
type MonthlySummary struct {
	Month      string          `json:"month,omitempty"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Balance    decimal.Decimal `json:"balance"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"byCategory"`
	Health     HealthReport    `json:"health"`
}

// Summarize totals txs. month is informational and may be empty.
func Summarize(month string, txs []Transaction) MonthlySummary {
	s := MonthlySummary{
		Month:   month,
		Income:  SumAmounts(txs, Income),
		Expense: SumAmounts(txs, Expense),
		Count:   len(txs),
	}
	s.Balance = s.Income.Sub(s.Expense)

	type key struct {
		name string
		typ  TransactionType
	}
	totals := map[key]decimal.Decimal{}
	for _, t := range txs {
		k := key{strings.TrimSpace(t.Category), t.Type}
		totals[k] = totals[k].Add(t.Amount)
	}
	for k, v := range totals {
		s.ByCategory = append(s.ByCategory, CategoryTotal{Category: k.name, Type: k.typ, Amount: v})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Category < b.Category
	})
	s.Health = AssessHealth(txs)
	return s
}
