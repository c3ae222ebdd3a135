package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/saku-tracker/internal/api/middleware"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

type DebtsHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

func NewDebtsHandler(svc *ledger.Service, log zerolog.Logger) *DebtsHandler {
	return &DebtsHandler{svc: svc, log: log}
}

// ListDebts handles GET /api/debts
func (h *DebtsHandler) ListDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.svc.ListDebts(r.Context())
	if err != nil {
		writeLedgerError(w, r, err, "Failed to list debts")
		return
	}
	if debts == nil {
		debts = []domain.DebtRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, debts)
}

// CreateDebt handles POST /api/debts
func (h *DebtsHandler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Person      string           `json:"person"`
		Amount      *decimal.Decimal `json:"amount"`
		Date        string           `json:"date"`
		DueDate     string           `json:"dueDate"`
		Description string           `json:"description"`
		Type        string           `json:"type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount == nil {
		middleware.WriteError(w, http.StatusBadRequest, "amount is required")
		return
	}
	typ, err := domain.ParseDebtType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeLedgerError(w, r, err, "Invalid date")
		return
	}
	d := domain.DebtRecord{Person: req.Person, Amount: *req.Amount, Date: date, Description: req.Description, Type: typ}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			writeLedgerError(w, r, err, "Invalid due date")
			return
		}
		d.DueDate = &due
	}

	saved, err := h.svc.AddDebt(r.Context(), d)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to add debt")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, saved)
}

// MarkPaid handles POST /api/debts/{id}/paid?companion=true
func (h *DebtsHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.MarkDebtPaid(r.Context(), r.PathValue("id"), queryBool(r, "companion"))
	if errors.Is(err, ledger.ErrCompanionFailed) {
		middleware.WriteJSON(w, http.StatusMultiStatus, map[string]any{
			"settlement": st,
			"error":      err.Error(),
		})
		return
	}
	if err != nil {
		writeLedgerError(w, r, err, "Failed to mark debt paid")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

// DeleteDebt handles DELETE /api/debts/{id}
func (h *DebtsHandler) DeleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDebt(r.Context(), r.PathValue("id")); err != nil {
		writeLedgerError(w, r, err, "Failed to delete debt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
