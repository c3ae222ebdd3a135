package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// AddTransactionTool is the only tool declared to the chat model.
const AddTransactionTool = "addTransaction"

// TransactionSink stores transactions created by tool calls.
type TransactionSink interface {
	AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
}

// addTransactionArgs is the decoded argument set of an addTransaction call.
type addTransactionArgs struct {
	Type        domain.TransactionType
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        time.Time
}

// decodeAddTransaction validates and coerces raw tool arguments. A missing
// or malformed date falls back to now. The category is resolved against the
// partition for the transaction type.
func decodeAddTransaction(ctx context.Context, args map[string]any, cats domain.CategorySet, matcher CategoryMatcher, now time.Time) (addTransactionArgs, error) {
	var out addTransactionArgs

	typ, err := domain.ParseTransactionType(stringArg(args, "type"))
	if err != nil {
		return out, err
	}
	out.Type = typ

	amount, err := decimalArg(args["amount"])
	if err != nil {
		return out, fmt.Errorf("amount: %w", err)
	}
	if amount.IsNegative() {
		return out, fmt.Errorf("amount must not be negative, got %s", amount)
	}
	out.Amount = amount

	out.Category = matcher.Match(ctx, stringArg(args, "category"), cats.For(typ), domain.FallbackCategory)
	out.Description = strings.TrimSpace(stringArg(args, "description"))

	out.Date = now.UTC()
	if raw := strings.TrimSpace(stringArg(args, "date")); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			out.Date = d
		} else if d, err := time.Parse(time.RFC3339, raw); err == nil {
			out.Date = d.UTC()
		}
	}
	return out, nil
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// decimalArg accepts JSON numbers and numeric strings such as "15000" or
// "Rp 15000".
func decimalArg(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
		s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
		if s == "" {
			return decimal.Zero, fmt.Errorf("missing")
		}
		return decimal.NewFromString(s)
	case nil:
		return decimal.Zero, fmt.Errorf("missing")
	}
	return decimal.Zero, fmt.Errorf("unsupported type %T", v)
}

func toolSuccess(t domain.Transaction) map[string]any {
	return map[string]any{
		"status":   "Success",
		"message":  "Transaction saved successfully.",
		"id":       t.ID,
		"category": t.Category,
		"amount":   t.Amount.String(),
		"type":     string(t.Type),
		"date":     t.Date.Format("2006-01-02"),
	}
}

func toolError(msg string) map[string]any {
	return map[string]any{"status": "error", "message": msg}
}
