// Package ledger is the API the front-ends call: HTTP handlers, the CLI,
// the Telegram bot and background jobs all go through Service.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/events"
	"github.com/dvloznov/saku-tracker/internal/store"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("ledger: invalid input")
	// ErrSessionNotFound is returned for an unknown chat session id.
	ErrSessionNotFound = errors.New("ledger: chat session not found")
	// ErrCompanionFailed means a debt was settled but its companion
	// transaction was not recorded.
	ErrCompanionFailed = errors.New("ledger: companion transaction not recorded")
)

// Store is the persistence the service needs. *store.Engine implements it.
type Store interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	AddTransaction(ctx context.Context, t domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListCategories(ctx context.Context) (domain.CategorySet, error)
	AddCategory(ctx context.Context, typ domain.TransactionType, name string) error
	GetMonthlyAnalysis(ctx context.Context, monthKey string) (*domain.MonthlyAnalysis, error)
	SaveMonthlyAnalysis(ctx context.Context, monthKey string, a domain.MonthlyAnalysis) error
	DeleteMonthlyAnalysis(ctx context.Context, monthKey string) error
	ListDebts(ctx context.Context) ([]domain.DebtRecord, error)
	GetDebt(ctx context.Context, id string) (domain.DebtRecord, error)
	AddDebt(ctx context.Context, d domain.DebtRecord) error
	MarkDebtPaid(ctx context.Context, id string) (domain.DebtRecord, bool, error)
	DeleteDebt(ctx context.Context, id string) error
}

var _ Store = (*store.Engine)(nil)

// Options carries the optional collaborators. Zero values fall back to a
// disabled model, lexical category matching and no event publishing.
type Options struct {
	Chat      assistant.ChatStarter
	Generator assistant.Generator
	Matcher   assistant.CategoryMatcher
	Events    events.Publisher
	Logger    zerolog.Logger
}

type Service struct {
	store   Store
	chat    assistant.ChatStarter
	advisor *assistant.Advisor
	matcher assistant.CategoryMatcher
	events  events.Publisher
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*assistant.Session
}

func New(s Store, opts Options) *Service {
	if opts.Chat == nil {
		opts.Chat = assistant.Disabled{}
	}
	if opts.Generator == nil {
		opts.Generator = assistant.Disabled{}
	}
	if opts.Matcher == nil {
		opts.Matcher = assistant.LexicalMatcher{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Service{
		store:    s,
		chat:     opts.Chat,
		advisor:  assistant.NewAdvisor(opts.Generator, opts.Logger),
		matcher:  opts.Matcher,
		events:   opts.Events,
		log:      opts.Logger.With().Str("component", "ledger").Logger(),
		now:      time.Now,
		sessions: make(map[string]*assistant.Session),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// publish sends an event after a successful write. Failures are logged only.
func (s *Service) publish(ctx context.Context, typ string, payload any) {
	e, err := events.New(typ, payload)
	if err == nil {
		err = s.events.Publish(ctx, e)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", typ).Msg("publishing event failed")
	}
}

// AddTransaction validates t, assigns an id and a date when missing, and
// stores it. The returned transaction is what was stored. An error wrapping
// store.ErrPersist still means the transaction was recorded in memory.
func (s *Service) AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	if !t.Type.Valid() {
		return t, invalid("type must be INCOME or EXPENSE, got %q", t.Type)
	}
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		return t, invalid("category is required")
	}
	if t.Amount.IsNegative() {
		return t, invalid("amount must not be negative")
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = s.now()
	}
	t.Date = t.Date.UTC()

	if err := s.store.AddTransaction(ctx, t); err != nil {
		return t, fmt.Errorf("AddTransaction: %w", err)
	}
	s.log.Info().Str("transaction_id", t.ID).Str("type", string(t.Type)).Str("category", t.Category).Msg("transaction added")
	s.publish(ctx, events.TransactionAdded, t)
	return t, nil
}

// DeleteTransaction removes a transaction. Unknown ids are a no-op.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id is required")
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	s.publish(ctx, events.TransactionDeleted, map[string]string{"id": id})
	return nil
}

// GetTransactions lists every transaction, newest first.
func (s *Service) GetTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// TransactionsForMonth lists the transactions dated in monthKey.
func (s *Service) TransactionsForMonth(ctx context.Context, monthKey string) ([]domain.Transaction, error) {
	if _, err := domain.ParseMonthKey(monthKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterByMonth(txs, monthKey), nil
}

func (s *Service) AddCategory(ctx context.Context, typ domain.TransactionType, name string) error {
	if !typ.Valid() {
		return invalid("type must be INCOME or EXPENSE, got %q", typ)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("category name is required")
	}
	if err := s.store.AddCategory(ctx, typ, name); err != nil {
		return fmt.Errorf("AddCategory: %w", err)
	}
	return nil
}

func (s *Service) GetCategories(ctx context.Context) (domain.CategorySet, error) {
	return s.store.ListCategories(ctx)
}

// MonthlySummary aggregates one month, or everything when monthKey is "".
func (s *Service) MonthlySummary(ctx context.Context, monthKey string) (domain.MonthlySummary, error) {
	var (
		txs []domain.Transaction
		err error
	)
	if monthKey == "" {
		txs, err = s.store.ListTransactions(ctx)
	} else {
		txs, err = s.TransactionsForMonth(ctx, monthKey)
	}
	if err != nil {
		return domain.MonthlySummary{}, err
	}
	return domain.Summarize(monthKey, txs), nil
}

// Trend returns the monthly income and expense series for the last months
// months that have transactions. A non-positive months uses
// domain.DefaultTrendMonths.
func (s *Service) Trend(ctx context.Context, months int) ([]domain.TrendPoint, error) {
	if months <= 0 {
		months = domain.DefaultTrendMonths
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Trend(txs, months), nil
}

// AnalyzeSinglePurchase never fails for model reasons; only bad input is
// rejected.
func (s *Service) AnalyzeSinglePurchase(ctx context.Context, item string, price decimal.Decimal, reason string) (domain.PurchaseAnalysis, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return domain.PurchaseAnalysis{}, invalid("item is required")
	}
	if price.IsNegative() {
		return domain.PurchaseAnalysis{}, invalid("price must not be negative")
	}
	return s.advisor.AnalyzePurchase(ctx, item, price, strings.TrimSpace(reason)), nil
}

// ParseTransaction drafts a transaction from free text without storing it.
func (s *Service) ParseTransaction(ctx context.Context, text string) (assistant.ParsedTransaction, bool, error) {
	if strings.TrimSpace(text) == "" {
		return assistant.ParsedTransaction{}, false, invalid("text is required")
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return assistant.ParsedTransaction{}, false, err
	}
	p, ok := s.advisor.ParseTransaction(ctx, text, cats)
	return p, ok, nil
}

// AdviseFinances reviews one month, or all history when monthKey is "".
func (s *Service) AdviseFinances(ctx context.Context, monthKey string) (string, error) {
	var (
		txs []domain.Transaction
		err error
	)
	if monthKey == "" {
		txs, err = s.store.ListTransactions(ctx)
	} else {
		txs, err = s.TransactionsForMonth(ctx, monthKey)
	}
	if err != nil {
		return "", err
	}
	return s.advisor.AdviseFinances(ctx, txs), nil
}
