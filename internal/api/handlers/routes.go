package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/api/middleware"
	"github.com/dvloznov/saku-tracker/internal/jobs"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

// NewRouter registers every route and wraps the mux in the middleware
// chain.
func NewRouter(svc *ledger.Service, publisher jobs.Publisher, jobStore jobs.JobStore, log zerolog.Logger) http.Handler {
	tx := NewTransactionsHandler(svc, log)
	adv := NewAdvisorHandler(svc, log)
	an := NewAnalysisHandler(svc, publisher, jobStore, log)
	chat := NewChatHandler(svc, log)
	debts := NewDebtsHandler(svc, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/transactions", tx.ListTransactions)
	mux.HandleFunc("POST /api/transactions", tx.CreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", tx.DeleteTransaction)
	mux.HandleFunc("POST /api/transactions/parse", adv.ParseTransaction)
	mux.HandleFunc("GET /api/categories", tx.ListCategories)
	mux.HandleFunc("POST /api/categories", tx.CreateCategory)
	mux.HandleFunc("GET /api/summary", tx.Summary)
	mux.HandleFunc("GET /api/trend", tx.Trend)
	mux.HandleFunc("GET /api/export.xlsx", tx.Export)
	mux.HandleFunc("GET /api/export.pdf", tx.ExportPDF)

	mux.HandleFunc("POST /api/purchases/analyze", adv.AnalyzePurchase)
	mux.HandleFunc("GET /api/advice", adv.Advice)

	mux.HandleFunc("GET /api/analysis/{month}", an.GetAnalysis)
	mux.HandleFunc("PUT /api/analysis/{month}", an.SaveAnalysis)
	mux.HandleFunc("DELETE /api/analysis/{month}", an.ResetAnalysis)
	mux.HandleFunc("POST /api/analysis/{month}/classify", an.Classify)
	mux.HandleFunc("POST /api/analysis/{month}/jobs", an.EnqueueClassify)
	mux.HandleFunc("GET /api/jobs", an.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", an.GetJob)

	mux.HandleFunc("POST /api/chat/sessions", chat.StartSession)
	mux.HandleFunc("GET /api/chat/sessions/{id}", chat.Transcript)
	mux.HandleFunc("POST /api/chat/sessions/{id}/messages", chat.Send)
	mux.HandleFunc("DELETE /api/chat/sessions/{id}", chat.EndSession)

	mux.HandleFunc("GET /api/debts", debts.ListDebts)
	mux.HandleFunc("POST /api/debts", debts.CreateDebt)
	mux.HandleFunc("POST /api/debts/{id}/paid", debts.MarkPaid)
	mux.HandleFunc("DELETE /api/debts/{id}", debts.DeleteDebt)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux, log)
}
