package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

const debtColumns = `id, person, amount, date, due_date, description, type, status`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDebt reads one debt row. Unparseable amounts and dates are logged and
// left zero so the row is still listed.
func (e *Engine) scanDebt(r rowScanner) (domain.DebtRecord, error) {
	var (
		d            domain.DebtRecord
		amount, date string
		due          sql.NullString
		typ, status  string
	)
	if err := r.Scan(&d.ID, &d.Person, &amount, &date, &due, &d.Description, &typ, &status); err != nil {
		return d, err
	}
	d.Type = domain.DebtType(typ)
	d.Status = domain.DebtStatus(status)
	var err error
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		e.log.Warn().Err(err).Str("debt_id", d.ID).Msg("unparseable debt amount")
	}
	if d.Date, err = parseTime(date); err != nil {
		e.log.Warn().Err(err).Str("debt_id", d.ID).Msg("unparseable debt date")
	}
	if due.Valid && due.String != "" {
		t, err := parseTime(due.String)
		if err != nil {
			e.log.Warn().Err(err).Str("debt_id", d.ID).Msg("unparseable debt due date")
		} else {
			d.DueDate = &t
		}
	}
	return d, nil
}

// ListDebts returns all debts, unpaid first, then by date descending.
func (e *Engine) ListDebts(ctx context.Context) ([]domain.DebtRecord, error) {
	out := []domain.DebtRecord{}
	err := e.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts
			ORDER BY CASE status WHEN 'UNPAID' THEN 0 ELSE 1 END, date DESC, rowid ASC`)
		if err != nil {
			e.log.Warn().Err(err).Msg("listing debts failed; returning empty list")
			return nil
		}
		defer rows.Close()
		for rows.Next() {
			d, err := e.scanDebt(rows)
			if err != nil {
				e.log.Warn().Err(err).Msg("skipping unreadable debt row")
				continue
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return []domain.DebtRecord{}, err
	}
	return out, nil
}

// GetDebt returns the debt with id or ErrNotFound.
func (e *Engine) GetDebt(ctx context.Context, id string) (domain.DebtRecord, error) {
	var d domain.DebtRecord
	err := e.read(ctx, func(db *sql.DB) error {
		var err error
		d, err = e.scanDebt(db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return d, err
}

// AddDebt stores d. Its status is forced to UNPAID.
func (e *Engine) AddDebt(ctx context.Context, d domain.DebtRecord) error {
	var due any
	if d.DueDate != nil {
		due = formatTime(*d.DueDate)
	}
	return e.mutate(ctx, "AddDebt", func(tx *sql.Tx) (bool, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO debts (`+debtColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Person, d.Amount.String(), formatTime(d.Date), due, d.Description,
			string(d.Type), string(domain.Unpaid))
		return err == nil, err
	})
}

// MarkDebtPaid moves the debt to PAID. It reports changed=false when the
// debt was already paid; PAID is terminal.
func (e *Engine) MarkDebtPaid(ctx context.Context, id string) (domain.DebtRecord, bool, error) {
	var (
		d       domain.DebtRecord
		changed bool
	)
	err := e.mutate(ctx, "MarkDebtPaid", func(tx *sql.Tx) (bool, error) {
		var err error
		d, err = e.scanDebt(tx.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		if err != nil {
			return false, err
		}
		if d.Status == domain.Paid {
			return false, nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE debts SET status = ? WHERE id = ?`, string(domain.Paid), id); err != nil {
			return false, err
		}
		d.Status = domain.Paid
		changed = true
		return true, nil
	})
	return d, changed, err
}

// DeleteDebt removes the debt with id. A missing id is a no-op.
func (e *Engine) DeleteDebt(ctx context.Context, id string) error {
	return e.mutate(ctx, "DeleteDebt", func(tx *sql.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
		if err != nil {
			return false, err
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
}
