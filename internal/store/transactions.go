package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// ListTransactions returns every transaction, newest first. Ties keep
// insertion order. Read failures degrade to an empty list; only an
// initialization failure is returned.
func (e *Engine) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	err := e.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, date, amount, category, description, type
			FROM transactions
			ORDER BY date DESC, rowid ASC`)
		if err != nil {
			e.log.Warn().Err(err).Msg("listing transactions failed; returning empty list")
			return nil
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t                          domain.Transaction
				id, date, amount, category sql.NullString
				description, typ           sql.NullString
			)
			if err := rows.Scan(&id, &date, &amount, &category, &description, &typ); err != nil {
				e.log.Warn().Err(err).Msg("skipping unreadable transaction row")
				continue
			}
			if !id.Valid {
				e.log.Warn().Msg("skipping transaction row without id")
				continue
			}
			t.ID = id.String
			t.Category = category.String
			t.Description = description.String
			t.Type = domain.TransactionType(typ.String)
			if t.Date, err = parseTime(date.String); err != nil {
				e.log.Warn().Err(err).Str("transaction_id", t.ID).Msg("unparseable transaction date")
			}
			if t.Amount, err = decimal.NewFromString(amount.String); err != nil {
				e.log.Warn().Err(err).Str("transaction_id", t.ID).Msg("unparseable transaction amount")
			}
			out = append(out, t)
		}
		if err := rows.Err(); err != nil {
			e.log.Warn().Err(err).Msg("iterating transactions failed")
		}
		return nil
	})
	if err != nil {
		return []domain.Transaction{}, err
	}
	return out, nil
}

// AddTransaction stores t as given. Adding an expense drops the cached
// analysis of its month.
func (e *Engine) AddTransaction(ctx context.Context, t domain.Transaction) error {
	return e.mutate(ctx, "AddTransaction", func(tx *sql.Tx) (bool, error) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, date, amount, category, description, type)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, formatTime(t.Date), t.Amount.String(), t.Category, t.Description, string(t.Type))
		if err != nil {
			return false, err
		}
		if t.Type == domain.Expense {
			if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_analysis WHERE month_id = ?`, t.Month()); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// DeleteTransaction removes the transaction with id. A missing id is a
// no-op. Deleting an expense drops the cached analysis of its month.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	return e.mutate(ctx, "DeleteTransaction", func(tx *sql.Tx) (bool, error) {
		var date, typ sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT date, type FROM transactions WHERE id = ?`, id).Scan(&date, &typ)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return false, err
		}
		if domain.TransactionType(typ.String) == domain.Expense {
			if when, perr := parseTime(date.String); perr == nil {
				if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_analysis WHERE month_id = ?`, domain.MonthKey(when)); err != nil {
					return false, err
				}
			}
		}
		return true, nil
	})
}
