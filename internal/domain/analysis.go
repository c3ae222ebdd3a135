package domain

import "strings"

// Verdict classifies an expense as essential or discretionary.
type Verdict string

const (
	Need Verdict = "NEED"
	Want Verdict = "WANT"
)

// ParseVerdict maps free model output onto a verdict. Anything that is not
// clearly NEED is treated as WANT.
func ParseVerdict(s string) Verdict {
	if strings.EqualFold(strings.TrimSpace(s), string(Need)) {
		return Need
	}
	return Want
}

// VerdictEntry is the per-transaction classification stored in a breakdown.
type VerdictEntry struct {
	TransactionID string  `json:"id"`
	Verdict       Verdict `json:"verdict"`
}

// MonthlyAnalysis is the cached needs/wants summary for one month. It is a
// point-in-time snapshot of the transactions it was computed from.
type MonthlyAnalysis struct {
	NeedsTotal      float64        `json:"needsTotal"`
	WantsTotal      float64        `json:"wantsTotal"`
	NeedsPercentage int            `json:"needsPercentage"`
	WantsPercentage int            `json:"wantsPercentage"`
	Insight         string         `json:"insight"`
	Breakdown       []VerdictEntry `json:"breakdown"`
}

// PurchaseAnalysis is the advisory verdict for a single prospective purchase.
type PurchaseAnalysis struct {
	Verdict        Verdict `json:"verdict"`
	Score          int     `json:"score"`
	Reasoning      string  `json:"reasoning"`
	Recommendation string  `json:"recommendation"`
	Alternatives   string  `json:"alternatives,omitempty"`
}
