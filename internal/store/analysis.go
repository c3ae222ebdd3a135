package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// GetMonthlyAnalysis returns the cached analysis for monthKey, or nil when
// there is none. A corrupt record is treated as missing.
func (e *Engine) GetMonthlyAnalysis(ctx context.Context, monthKey string) (*domain.MonthlyAnalysis, error) {
	var found *domain.MonthlyAnalysis
	err := e.read(ctx, func(db *sql.DB) error {
		var data sql.NullString
		err := db.QueryRowContext(ctx, `SELECT data FROM monthly_analysis WHERE month_id = ?`, monthKey).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			e.log.Warn().Err(err).Str("month", monthKey).Msg("reading cached analysis failed")
			return nil
		}

		var a domain.MonthlyAnalysis
		if err := json.Unmarshal([]byte(data.String), &a); err != nil {
			e.log.Warn().Err(err).Str("month", monthKey).Msg("cached analysis is corrupt; treating as missing")
			return nil
		}
		found = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SaveMonthlyAnalysis replaces any record stored under monthKey.
func (e *Engine) SaveMonthlyAnalysis(ctx context.Context, monthKey string, a domain.MonthlyAnalysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("SaveMonthlyAnalysis: encoding: %w", err)
	}
	return e.mutate(ctx, "SaveMonthlyAnalysis", func(tx *sql.Tx) (bool, error) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_analysis (month_id, data) VALUES (?, ?)
			ON CONFLICT(month_id) DO UPDATE SET data = excluded.data`, monthKey, string(data))
		return err == nil, err
	})
}

// DeleteMonthlyAnalysis removes the record for monthKey, if any.
func (e *Engine) DeleteMonthlyAnalysis(ctx context.Context, monthKey string) error {
	return e.mutate(ctx, "DeleteMonthlyAnalysis", func(tx *sql.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM monthly_analysis WHERE month_id = ?`, monthKey)
		if err != nil {
			return false, err
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
}
