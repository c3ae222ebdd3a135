package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/events"
)

// GetMonthlyAnalysis returns the cached analysis or nil.
func (s *Service) GetMonthlyAnalysis(ctx context.Context, monthKey string) (*domain.MonthlyAnalysis, error) {
	if _, err := domain.ParseMonthKey(monthKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.store.GetMonthlyAnalysis(ctx, monthKey)
}

// SaveMonthlyAnalysis replaces the cached analysis for monthKey.
func (s *Service) SaveMonthlyAnalysis(ctx context.Context, monthKey string, a domain.MonthlyAnalysis) error {
	if _, err := domain.ParseMonthKey(monthKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.SaveMonthlyAnalysis(ctx, monthKey, a); err != nil {
		return fmt.Errorf("SaveMonthlyAnalysis: %w", err)
	}
	s.publish(ctx, events.AnalysisSaved, map[string]any{"month": monthKey, "analysis": a})
	return nil
}

// ResetMonthlyAnalysis drops the cached analysis, including its durable
// copy, so the next ClassifyMonth asks the model again.
func (s *Service) ResetMonthlyAnalysis(ctx context.Context, monthKey string) error {
	if _, err := domain.ParseMonthKey(monthKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.DeleteMonthlyAnalysis(ctx, monthKey); err != nil {
		return fmt.Errorf("ResetMonthlyAnalysis: %w", err)
	}
	return nil
}

// ClassifyResult is what ClassifyMonth produced and where it came from.
type ClassifyResult struct {
	Month    string                 `json:"month"`
	Analysis domain.MonthlyAnalysis `json:"analysis"`
	// Cached is true when the analysis was served without a model call.
	Cached bool `json:"cached"`
	// Fallback is true when the model failed and Analysis is the all-WANT
	// placeholder. Fallbacks are never cached.
	Fallback bool `json:"fallback"`
}

// ClassifyMonth returns the needs/wants analysis of monthKey, using the
// cache unless force is set. A successful classification is cached; a
// failure to cache it is logged and does not fail the call.
func (s *Service) ClassifyMonth(ctx context.Context, monthKey string, force bool) (ClassifyResult, error) {
	res := ClassifyResult{Month: monthKey}
	if !force {
		cached, err := s.GetMonthlyAnalysis(ctx, monthKey)
		if err != nil {
			return res, err
		}
		if cached != nil {
			res.Analysis = *cached
			res.Cached = true
			return res, nil
		}
	}

	txs, err := s.TransactionsForMonth(ctx, monthKey)
	if err != nil {
		return res, err
	}

	analysis, ok := s.advisor.ClassifyExpenses(ctx, txs)
	res.Analysis = analysis
	res.Fallback = !ok
	if !ok {
		return res, nil
	}

	if err := s.SaveMonthlyAnalysis(ctx, monthKey, analysis); err != nil {
		s.log.Error().Err(err).Str("month", monthKey).Msg("caching analysis failed")
	}
	return res, nil
}
