// Package handlers exposes the ledger over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/api/middleware"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/export"
	"github.com/dvloznov/saku-tracker/internal/jobs"
	"github.com/dvloznov/saku-tracker/internal/ledger"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/store"
)

// writeLedgerError maps service errors to status codes. Persist failures
// are 503: the change is applied in memory but not yet durable.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrSessionNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrPersist):
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusServiceUnavailable, msg+": saved in memory, durable write failed")
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseDate accepts "", YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q: want YYYY-MM-DD", ledger.ErrInvalidInput, s)
	}
	return t, nil
}

// TransactionsHandler serves transactions, categories, summaries and
// the spreadsheet export.
type TransactionsHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

func NewTransactionsHandler(svc *ledger.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// transactions lists everything, or one month when ?month= is set.
func (h *TransactionsHandler) transactions(r *http.Request) ([]domain.Transaction, error) {
	if month := r.URL.Query().Get("month"); month != "" {
		return h.svc.TransactionsForMonth(r.Context(), month)
	}
	return h.svc.GetTransactions(r.Context())
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions(r)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

type transactionRequest struct {
	Date        string           `json:"date"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount == nil {
		middleware.WriteError(w, http.StatusBadRequest, "amount is required")
		return
	}
	typ, err := domain.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeLedgerError(w, r, err, "Invalid date")
		return
	}

	t, err := h.svc.AddTransaction(r.Context(), domain.Transaction{
		Date:        date,
		Amount:      *req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Type:        typ,
	})
	if err != nil {
		writeLedgerError(w, r, err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, t)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeLedgerError(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /api/categories
func (h *TransactionsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.GetCategories(r.Context())
	if err != nil {
		writeLedgerError(w, r, err, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cats)
}

// CreateCategory handles POST /api/categories
func (h *TransactionsHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	typ, err := domain.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.AddCategory(r.Context(), typ, req.Name); err != nil {
		writeLedgerError(w, r, err, "Failed to add category")
		return
	}
	h.ListCategories(w, r)
}

// Summary handles GET /api/summary?month=YYYY-MM
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.MonthlySummary(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeLedgerError(w, r, err, "Failed to summarize")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sum)
}

// Export handles GET /api/export.xlsx?month=YYYY-MM
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions(r)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to export")
		return
	}
	name := "laporan"
	if month := r.URL.Query().Get("month"); month != "" {
		name += "-" + month
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	if err := export.WriteXLSX(w, txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to write spreadsheet")
	}
}

// ExportPDF handles GET /api/export.pdf?month=YYYY-MM
func (h *TransactionsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions(r)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to export")
		return
	}
	name, period := "laporan", "Semua"
	if month := r.URL.Query().Get("month"); month != "" {
		name += "-" + month
		period = month
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, name))
	if err := export.WritePDF(w, period, txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to write PDF report")
	}
}

// Trend handles GET /api/trend?months=N
func (h *TransactionsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = n
	}
	points, err := h.svc.Trend(r.Context(), months)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to compute trend")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, points)
}

// AdvisorHandler serves the model-backed helpers. None of them fail on
// model errors; they answer with fallback values.
type AdvisorHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

func NewAdvisorHandler(svc *ledger.Service, log zerolog.Logger) *AdvisorHandler {
	return &AdvisorHandler{svc: svc, log: log}
}

// AnalyzePurchase handles POST /api/purchases/analyze
func (h *AdvisorHandler) AnalyzePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item   string          `json:"item"`
		Price  decimal.Decimal `json:"price"`
		Reason string          `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.AnalyzeSinglePurchase(r.Context(), req.Item, req.Price, req.Reason)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to analyze purchase")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// ParseTransaction handles POST /api/transactions/parse
func (h *AdvisorHandler) ParseTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, ok, err := h.svc.ParseTransaction(r.Context(), req.Text)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to parse transaction")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not understand the transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

// Advice handles GET /api/advice?month=YYYY-MM
func (h *AdvisorHandler) Advice(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.AdviseFinances(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeLedgerError(w, r, err, "Failed to get advice")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"advice": text})
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
