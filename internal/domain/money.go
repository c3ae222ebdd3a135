package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupiah renders d as "Rp 1.250.000" with no fraction digits.
func FormatRupiah(d decimal.Decimal) string {
	s := d.Round(0).Abs().String()
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if d.Round(0).IsNegative() {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
