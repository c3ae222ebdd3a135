package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DebtType string

const (
	// Payable is money the user owes someone else.
	Payable DebtType = "PAYABLE"
	// Receivable is money someone owes the user.
	Receivable DebtType = "RECEIVABLE"
)

func ParseDebtType(s string) (DebtType, error) {
	switch DebtType(strings.ToUpper(strings.TrimSpace(s))) {
	case Payable:
		return Payable, nil
	case Receivable:
		return Receivable, nil
	}
	return "", fmt.Errorf("invalid debt type %q: want PAYABLE or RECEIVABLE", s)
}

type DebtStatus string

const (
	Unpaid DebtStatus = "UNPAID"
	Paid   DebtStatus = "PAID"
)

// DebtRecord tracks money lent or borrowed. Status moves from UNPAID to
// PAID once and never back.
type DebtRecord struct {
	ID          string          `json:"id"`
	Person      string          `json:"person"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	Description string          `json:"description"`
	Type        DebtType        `json:"type"`
	Status      DebtStatus      `json:"status"`
}

// Companion category names recorded when a debt is settled.
const (
	PayableSettledCategory    = "Bayar Hutang (Keluar)"
	ReceivableSettledCategory = "Pelunasan Hutang (Masuk)"
)

// CompanionTransaction builds the transaction that mirrors settling d: an
// expense for a payable and an income for a receivable. The caller assigns
// the id.
func CompanionTransaction(d DebtRecord, at time.Time) Transaction {
	t := Transaction{
		Date:   at.UTC(),
		Amount: d.Amount,
	}
	if d.Type == Payable {
		t.Type = Expense
		t.Category = PayableSettledCategory
		t.Description = fmt.Sprintf("Bayar hutang ke %s", d.Person)
	} else {
		t.Type = Income
		t.Category = ReceivableSettledCategory
		t.Description = fmt.Sprintf("Pelunasan dari %s", d.Person)
	}
	if d.Description != "" {
		t.Description += ": " + d.Description
	}
	return t
}
