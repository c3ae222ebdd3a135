package store

import (
	"context"
	"database/sql"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// ListCategories returns the registry split by type. An empty partition
// falls back to the built-in defaults for that partition only.
func (e *Engine) ListCategories(ctx context.Context) (domain.CategorySet, error) {
	set := domain.CategorySet{Income: []string{}, Expense: []string{}}
	err := e.read(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT name, type FROM categories ORDER BY id ASC`)
		if err != nil {
			e.log.Warn().Err(err).Msg("listing categories failed; using defaults")
			return nil
		}
		defer rows.Close()

		for rows.Next() {
			var name, typ sql.NullString
			if err := rows.Scan(&name, &typ); err != nil || name.String == "" {
				continue
			}
			switch domain.TransactionType(typ.String) {
			case domain.Income:
				set.Income = append(set.Income, name.String)
			case domain.Expense:
				set.Expense = append(set.Expense, name.String)
			}
		}
		if err := rows.Err(); err != nil {
			e.log.Warn().Err(err).Msg("iterating categories failed")
		}
		return nil
	})
	if err != nil {
		return domain.DefaultCategories(), err
	}

	defaults := domain.DefaultCategories()
	if len(set.Income) == 0 {
		set.Income = defaults.Income
	}
	if len(set.Expense) == 0 {
		set.Expense = defaults.Expense
	}
	return set, nil
}

// AddCategory registers (name, typ). Registering an existing pair is a
// silent no-op.
func (e *Engine) AddCategory(ctx context.Context, typ domain.TransactionType, name string) error {
	return e.mutate(ctx, "AddCategory", func(tx *sql.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (name, type) VALUES (?, ?)`, name, string(typ))
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return true, nil
		}
		return n > 0, nil
	})
}
