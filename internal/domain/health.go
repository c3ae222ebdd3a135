package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Bucket is one of the four CSIZ spending groups.
type Bucket string

const (
	Consumption Bucket = "C"
	Savings     Bucket = "S"
	Investment  Bucket = "I"
	Charity     Bucket = "Z"
)

// bucketKeywords are matched by containment against the expense category.
// Order matters: charity is checked first, then investment, then savings.
var bucketKeywords = []struct {
	bucket   Bucket
	keywords []string
}{
	{Charity, []string{"Zakat/Infaq/Sedekah", "Sedekah", "Infaq", "Zakat", "Amal"}},
	{Investment, []string{"Investasi", "Emas", "Reksa Dana", "Saham"}},
	{Savings, []string{"Tabungan", "Dana Darurat"}},
}

// BucketFor places an expense category into a CSIZ bucket.
func BucketFor(category string) Bucket {
	c := strings.ToLower(category)
	for _, b := range bucketKeywords {
		for _, kw := range b.keywords {
			if strings.Contains(c, strings.ToLower(kw)) {
				return b.bucket
			}
		}
	}
	return Consumption
}

// HealthMetric is one bucket's share of income checked against its target.
type HealthMetric struct {
	Bucket  Bucket          `json:"bucket"`
	Amount  decimal.Decimal `json:"amount"`
	Percent float64         `json:"percent"`
	Target  int             `json:"target"`
	// AtMost is true when the target is a ceiling rather than a floor.
	AtMost  bool `json:"atMost"`
	Healthy bool `json:"healthy"`
}

// HealthReport holds the four CSIZ metrics in C, S, I, Z order.
type HealthReport struct {
	Income  decimal.Decimal `json:"income"`
	Metrics []HealthMetric  `json:"metrics"`
}

// Metric returns the metric for b.
func (r HealthReport) Metric(b Bucket) HealthMetric {
	for _, m := range r.Metrics {
		if m.Bucket == b {
			return m
		}
	}
	return HealthMetric{Bucket: b}
}

var hundred = decimal.NewFromInt(100)

// AssessHealth computes the CSIZ breakdown of txs relative to income. Zero
// income is treated as 1 so the percentages stay finite.
func AssessHealth(txs []Transaction) HealthReport {
	income := SumAmounts(txs, Income)
	amounts := map[Bucket]decimal.Decimal{}
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		b := BucketFor(t.Category)
		amounts[b] = amounts[b].Add(t.Amount)
	}

	base := income
	if base.IsZero() {
		base = decimal.NewFromInt(1)
	}

	targets := []struct {
		bucket Bucket
		target int
		atMost bool
	}{
		{Consumption, 65, true},
		{Savings, 10, false},
		{Investment, 20, false},
		{Charity, 5, false},
	}

	r := HealthReport{Income: income}
	for _, tg := range targets {
		amt := amounts[tg.bucket]
		pct := amt.Div(base).Mul(hundred).Round(1)
		limit := decimal.NewFromInt(int64(tg.target))
		healthy := pct.GreaterThanOrEqual(limit)
		if tg.atMost {
			healthy = pct.LessThanOrEqual(limit)
		}
		r.Metrics = append(r.Metrics, HealthMetric{
			Bucket:  tg.bucket,
			Amount:  amt,
			Percent: pct.InexactFloat64(),
			Target:  tg.target,
			AtMost:  tg.atMost,
			Healthy: healthy,
		})
	}
	return r
}
