package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTrendMonths is how many months the trend chart shows.
const DefaultTrendMonths = 6

// TrendPoint is one month of the income and expense series.
type TrendPoint struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Trend totals txs per month in ascending month order and keeps the last
// months entries. Months without transactions are not filled in. A
// non-positive months keeps every month.
func Trend(txs []Transaction, months int) []TrendPoint {
	byMonth := map[string]*TrendPoint{}
	for _, t := range txs {
		key := t.Month()
		p, ok := byMonth[key]
		if !ok {
			p = &TrendPoint{Month: key}
			byMonth[key] = p
		}
		if t.Type == Income {
			p.Income = p.Income.Add(t.Amount)
		} else {
			p.Expense = p.Expense.Add(t.Amount)
		}
	}

	out := make([]TrendPoint, 0, len(byMonth))
	for _, p := range byMonth {
		p.Balance = p.Income.Sub(p.Expense)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if months > 0 && len(out) > months {
		out = out[len(out)-months:]
	}
	return out
}
