package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// Advisor runs the stateless model operations. None of its methods return
// errors: on any failure they log and return a fallback value.
type Advisor struct {
	gen Generator
	log zerolog.Logger
	now func() time.Time
}

func NewAdvisor(gen Generator, log zerolog.Logger) *Advisor {
	return &Advisor{gen: gen, log: log.With().Str("component", "advisor").Logger(), now: time.Now}
}

type classifyResponse struct {
	Breakdown []struct {
		ID      string `json:"id"`
		Verdict string `json:"verdict"`
	} `json:"breakdown"`
	Insight string `json:"insight"`
}

var hundred = decimal.NewFromInt(100)

// ClassifyExpenses labels each expense in txs as NEED or WANT. Totals and
// percentages are computed locally from the amounts; the model only
// supplies verdicts and the insight. Expenses the model skipped, or gave an
// unknown verdict, count as WANT. ok is false when the model call failed
// and the result is the all-WANT fallback.
func (a *Advisor) ClassifyExpenses(ctx context.Context, txs []domain.Transaction) (domain.MonthlyAnalysis, bool) {
	expenses := domain.FilterByType(txs, domain.Expense)
	if len(expenses) == 0 {
		return domain.MonthlyAnalysis{Insight: noExpensesInsight, Breakdown: []domain.VerdictEntry{}}, true
	}

	verdicts := map[string]domain.Verdict{}
	insight := ""
	ok := true

	raw, err := a.gen.GenerateJSON(ctx, classifyPrompt(expenses))
	if err == nil {
		var resp classifyResponse
		if err = json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err == nil {
			for _, b := range resp.Breakdown {
				verdicts[b.ID] = domain.ParseVerdict(b.Verdict)
			}
			insight = strings.TrimSpace(resp.Insight)
		}
	}
	if err != nil {
		a.log.Error().Err(err).Int("expenses", len(expenses)).Msg("needs/wants classification failed; using fallback")
		verdicts = map[string]domain.Verdict{}
		insight = fallbackInsight
		ok = false
	}
	if insight == "" {
		insight = noInsight
	}

	return summarizeVerdicts(expenses, verdicts, insight), ok
}

const noInsight = "Analisis selesai."

func summarizeVerdicts(expenses []domain.Transaction, verdicts map[string]domain.Verdict, insight string) domain.MonthlyAnalysis {
	needs, wants := decimal.Zero, decimal.Zero
	breakdown := make([]domain.VerdictEntry, 0, len(expenses))
	for _, t := range expenses {
		v, found := verdicts[t.ID]
		if !found {
			v = domain.Want
		}
		if v == domain.Need {
			needs = needs.Add(t.Amount)
		} else {
			wants = wants.Add(t.Amount)
		}
		breakdown = append(breakdown, domain.VerdictEntry{TransactionID: t.ID, Verdict: v})
	}

	return domain.MonthlyAnalysis{
		NeedsTotal:      needs.InexactFloat64(),
		WantsTotal:      wants.InexactFloat64(),
		NeedsPercentage: percentOf(needs, needs.Add(wants)),
		WantsPercentage: percentOf(wants, needs.Add(wants)),
		Insight:         insight,
		Breakdown:       breakdown,
	}
}

func percentOf(part, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(part.Mul(hundred).Div(total).Round(0).IntPart())
}

type purchaseResponse struct {
	Verdict        string          `json:"verdict"`
	Score          json.Number     `json:"score"`
	Reasoning      string          `json:"reasoning"`
	Recommendation string          `json:"recommendation"`
	Alternatives   json.RawMessage `json:"alternatives"`
}

// AnalyzePurchase judges a prospective purchase. The score is clamped to
// 0..100.
func (a *Advisor) AnalyzePurchase(ctx context.Context, item string, price decimal.Decimal, reason string) domain.PurchaseAnalysis {
	fallback := domain.PurchaseAnalysis{
		Verdict:        domain.Want,
		Score:          0,
		Reasoning:      fallbackReasoning,
		Recommendation: fallbackRecommend,
		Alternatives:   fallbackAlternatives,
	}

	raw, err := a.gen.GenerateJSON(ctx, purchasePrompt(item, price.String(), reason))
	if err != nil {
		a.log.Error().Err(err).Str("item", item).Msg("purchase analysis failed; using fallback")
		return fallback
	}

	var resp purchaseResponse
	dec := json.NewDecoder(strings.NewReader(cleanModelJSON(raw)))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		a.log.Error().Err(err).Str("item", item).Msg("purchase analysis unparseable; using fallback")
		return fallback
	}

	score := 0
	if f, err := resp.Score.Float64(); err == nil {
		score = int(decimal.NewFromFloat(f).Round(0).IntPart())
	}
	score = max(0, min(100, score))

	out := domain.PurchaseAnalysis{
		Verdict:        domain.ParseVerdict(resp.Verdict),
		Score:          score,
		Reasoning:      strings.TrimSpace(resp.Reasoning),
		Recommendation: strings.TrimSpace(resp.Recommendation),
		Alternatives:   flattenAlternatives(resp.Alternatives),
	}
	if out.Reasoning == "" {
		out.Reasoning = fallbackReasoning
	}
	if out.Recommendation == "" {
		out.Recommendation = fallbackRecommend
	}
	if out.Alternatives == "" {
		out.Alternatives = fallbackAlternatives
	}
	return out
}

// flattenAlternatives accepts either a string or a list of strings.
func flattenAlternatives(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// ParsedTransaction is a transaction draft extracted from free text. It has
// no id and is not stored.
type ParsedTransaction struct {
	Amount      decimal.Decimal        `json:"amount"`
	Type        domain.TransactionType `json:"type"`
	Category    string                 `json:"category"`
	Date        time.Time              `json:"date"`
	Description string                 `json:"description"`
}

type parseResponse struct {
	Amount      any    `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ParseTransaction turns text such as "beli bakso 15rb" into a draft.
// ok is false when the model failed or returned something unusable.
func (a *Advisor) ParseTransaction(ctx context.Context, text string, cats domain.CategorySet) (ParsedTransaction, bool) {
	now := a.now().UTC()
	raw, err := a.gen.GenerateJSON(ctx, parsePrompt(text, now.Format("2006-01-02"), cats))
	if err != nil {
		a.log.Error().Err(err).Msg("transaction parse failed")
		return ParsedTransaction{}, false
	}

	var resp parseResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err != nil {
		a.log.Error().Err(err).Msg("transaction parse unparseable")
		return ParsedTransaction{}, false
	}

	args := map[string]any{
		"type":        resp.Type,
		"amount":      resp.Amount,
		"category":    resp.Category,
		"description": resp.Description,
		"date":        resp.Date,
	}
	decoded, err := decodeAddTransaction(ctx, args, cats, LexicalMatcher{}, now)
	if err != nil {
		a.log.Warn().Err(err).Msg("parsed transaction invalid")
		return ParsedTransaction{}, false
	}
	return ParsedTransaction{
		Amount:      decoded.Amount,
		Type:        decoded.Type,
		Category:    decoded.Category,
		Date:        decoded.Date,
		Description: decoded.Description,
	}, true
}

// AdviseFinances returns a short free-text review of txs.
func (a *Advisor) AdviseFinances(ctx context.Context, txs []domain.Transaction) string {
	text, err := a.gen.GenerateText(ctx, advisorSystem, advicePrompt(txs))
	if err != nil {
		a.log.Error().Err(err).Msg("finance advice failed")
		return fallbackAdvice
	}
	if strings.TrimSpace(text) == "" {
		return fallbackAdviceNoReply
	}
	return strings.TrimSpace(text)
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func (p ParsedTransaction) String() string {
	return fmt.Sprintf("%s %s %s (%s) %s", p.Date.Format("2006-01-02"), p.Type, p.Amount, p.Category, p.Description)
}
