package domain

import (
	"fmt"
	"time"
)

const monthKeyLayout = "2006-01"

// MonthKey returns the canonical YYYY-MM key for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthKeyLayout)
}

// ParseMonthKey validates a YYYY-MM key and returns the first instant of
// that month in UTC.
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: want YYYY-MM", key)
	}
	return t, nil
}

// PreviousMonthKey returns the key of the month before the one containing t.
func PreviousMonthKey(t time.Time) string {
	u := t.UTC()
	first := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey(first.AddDate(0, -1, 0))
}

// FilterByMonth keeps the transactions whose date falls in month key.
func FilterByMonth(txs []Transaction, key string) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if MonthKey(t.Date) == key {
			out = append(out, t)
		}
	}
	return out
}
