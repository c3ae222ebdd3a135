package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/events"
)

// AddDebt validates and stores a new unpaid debt.
func (s *Service) AddDebt(ctx context.Context, d domain.DebtRecord) (domain.DebtRecord, error) {
	d.Person = strings.TrimSpace(d.Person)
	if d.Person == "" {
		return d, invalid("person is required")
	}
	if d.Type != domain.Payable && d.Type != domain.Receivable {
		return d, invalid("type must be PAYABLE or RECEIVABLE, got %q", d.Type)
	}
	if d.Amount.IsNegative() {
		return d, invalid("amount must not be negative")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Date.IsZero() {
		d.Date = s.now()
	}
	d.Date = d.Date.UTC()
	d.Status = domain.Unpaid

	if err := s.store.AddDebt(ctx, d); err != nil {
		return d, fmt.Errorf("AddDebt: %w", err)
	}
	return d, nil
}

func (s *Service) ListDebts(ctx context.Context) ([]domain.DebtRecord, error) {
	return s.store.ListDebts(ctx)
}

// Settlement is the outcome of MarkDebtPaid.
type Settlement struct {
	Debt domain.DebtRecord `json:"debt"`
	// Changed is false when the debt was already paid.
	Changed bool `json:"changed"`
	// Companion is the transaction recorded for the payment, if any.
	Companion *domain.Transaction `json:"companion,omitempty"`
}

// MarkDebtPaid settles debt id. When recordCompanion is set and the status
// actually changed, it also records the matching expense or income. A
// companion failure is returned with the settlement; the status change is
// not rolled back.
func (s *Service) MarkDebtPaid(ctx context.Context, id string, recordCompanion bool) (Settlement, error) {
	if strings.TrimSpace(id) == "" {
		return Settlement{}, invalid("id is required")
	}
	d, changed, err := s.store.MarkDebtPaid(ctx, id)
	if err != nil {
		return Settlement{Debt: d, Changed: changed}, fmt.Errorf("MarkDebtPaid: %w", err)
	}
	out := Settlement{Debt: d, Changed: changed}
	if !changed {
		return out, nil
	}
	s.publish(ctx, events.DebtPaid, d)

	if !recordCompanion {
		return out, nil
	}
	t, err := s.AddTransaction(ctx, domain.CompanionTransaction(d, s.now()))
	if err != nil {
		s.log.Error().Err(err).Str("debt_id", d.ID).Msg("recording companion transaction failed")
		return out, fmt.Errorf("MarkDebtPaid: %w: %w", ErrCompanionFailed, err)
	}
	out.Companion = &t
	return out, nil
}

// DeleteDebt removes a debt. Unknown ids are a no-op.
func (s *Service) DeleteDebt(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id is required")
	}
	if err := s.store.DeleteDebt(ctx, id); err != nil {
		return fmt.Errorf("DeleteDebt: %w", err)
	}
	return nil
}
