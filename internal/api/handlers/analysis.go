package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/api/middleware"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/jobs"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

// AnalysisHandler serves the monthly needs/wants cache and the jobs that
// fill it.
type AnalysisHandler struct {
	svc       *ledger.Service
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

func NewAnalysisHandler(svc *ledger.Service, publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, publisher: publisher, store: store, log: log}
}

// GetAnalysis handles GET /api/analysis/{month}
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetMonthlyAnalysis(r.Context(), r.PathValue("month"))
	if err != nil {
		writeLedgerError(w, r, err, "Failed to get analysis")
		return
	}
	if a == nil {
		middleware.WriteError(w, http.StatusNotFound, "No analysis for this month")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// SaveAnalysis handles PUT /api/analysis/{month}
func (h *AnalysisHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var a domain.MonthlyAnalysis
	if !decodeBody(w, r, &a) {
		return
	}
	if err := h.svc.SaveMonthlyAnalysis(r.Context(), r.PathValue("month"), a); err != nil {
		writeLedgerError(w, r, err, "Failed to save analysis")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// ResetAnalysis handles DELETE /api/analysis/{month}
func (h *AnalysisHandler) ResetAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetMonthlyAnalysis(r.Context(), r.PathValue("month")); err != nil {
		writeLedgerError(w, r, err, "Failed to reset analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Classify handles POST /api/analysis/{month}/classify?force=true and
// runs the classification in the request.
func (h *AnalysisHandler) Classify(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ClassifyMonth(r.Context(), r.PathValue("month"), queryBool(r, "force"))
	if err != nil {
		writeLedgerError(w, r, err, "Failed to classify month")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// EnqueueClassify handles POST /api/analysis/{month}/jobs
func (h *AnalysisHandler) EnqueueClassify(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if _, err := domain.ParseMonthKey(month); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	job := &jobs.ClassifyMonthJob{Month: month, Force: queryBool(r, "force")}
	if err := h.publisher.PublishClassifyMonth(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("month", month).Msg("Failed to enqueue classification job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue classification job")
		return
	}
	h.log.Info().Str("job_id", job.JobID).Str("month", month).Msg("Classification job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"month":  month,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *AnalysisHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, r, err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?month=&status=&limit=&offset=
func (h *AnalysisHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{
		Month:  q.Get("month"),
		Status: jobs.JobStatus(q.Get("status")),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = n
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, r, err, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  list,
		"count": len(list),
	})
}
