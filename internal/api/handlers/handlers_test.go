package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/saku-tracker/internal/blob"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/export"
	"github.com/dvloznov/saku-tracker/internal/jobs"
	"github.com/dvloznov/saku-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/saku-tracker/internal/ledger"
	"github.com/dvloznov/saku-tracker/internal/store"
)

type mockGenerator struct {
	GenerateJSONFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if m.GenerateJSONFunc == nil {
		return "", errors.New("offline")
	}
	return m.GenerateJSONFunc(ctx, prompt)
}

func (m *mockGenerator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return "", errors.New("offline")
}

type server struct {
	t        *testing.T
	handler  http.Handler
	jobStore *inmemory.Store
}

func newServer(t *testing.T, gen *mockGenerator) *server {
	t.Helper()
	return newServerWithStore(t, gen, nil)
}

// newServerWithStore lets wrap put a stub in front of the real engine.
func newServerWithStore(t *testing.T, gen *mockGenerator, wrap func(*store.Engine) ledger.Store) *server {
	t.Helper()
	engine := store.NewEngine(store.NewBlobPersister(blob.NewMemory(), store.DefaultKey), zerolog.Nop())
	require.NoError(t, engine.Init(context.Background()))
	t.Cleanup(func() { engine.Close() })

	opts := ledger.Options{Logger: zerolog.Nop()}
	if gen != nil {
		opts.Generator = gen
	}
	var st ledger.Store = engine
	if wrap != nil {
		st = wrap(engine)
	}
	svc := ledger.New(st, opts)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Config{}, jobStore, zerolog.Nop())
	t.Cleanup(func() { queue.Close() })

	return &server{t: t, handler: NewRouter(svc, queue, jobStore, zerolog.Nop()), jobStore: jobStore}
}

func (s *server) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTransactionsLifecycle(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/transactions", `{"date":"2024-05-02","amount":15000,"category":"Makanan","description":"bakso","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Transaction](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.Expense, created.Type)

	rec = s.do(http.MethodPost, "/api/transactions", `{"date":"2024-04-30","amount":"2000","category":"Transportasi","type":"EXPENSE"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/transactions?month=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Transaction](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/transactions", "")
	assert.Len(t, decode[[]domain.Transaction](t, rec), 2)

	rec = s.do(http.MethodDelete, "/api/transactions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/transactions?month=2024-05", "")
	assert.Empty(t, decode[[]domain.Transaction](t, rec))
}

func TestCreateTransaction_BadRequests(t *testing.T) {
	s := newServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad type", `{"amount":1,"category":"Makanan","type":"GIFT"}`},
		{"bad date", `{"amount":1,"category":"Makanan","type":"EXPENSE","date":"02/05/2024"}`},
		{"missing category", `{"amount":1,"type":"EXPENSE"}`},
		{"negative amount", `{"amount":-5,"category":"Makanan","type":"EXPENSE"}`},
		{"missing amount", `{"category":"Makanan","type":"EXPENSE","date":"2024-05-02"}`},
		{"null amount", `{"amount":null,"category":"Makanan","type":"EXPENSE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCategories(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/categories", `{"name":"Kos","type":"EXPENSE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[domain.CategorySet](t, rec)
	assert.Contains(t, cats.Expense, "Kos")
	assert.Contains(t, cats.Income, "Uang Saku")
}

func TestSummaryAndExport(t *testing.T) {
	s := newServer(t, nil)
	s.do(http.MethodPost, "/api/transactions", `{"date":"2024-05-01","amount":500000,"category":"Uang Saku","type":"INCOME"}`)
	s.do(http.MethodPost, "/api/transactions", `{"date":"2024-05-02","amount":100000,"category":"Tabungan","type":"EXPENSE"}`)

	rec := s.do(http.MethodGet, "/api/summary?month=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[domain.MonthlySummary](t, rec)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, "400000", sum.Balance.String())

	rec = s.do(http.MethodGet, "/api/summary?month=May", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/export.xlsx?month=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "laporan-2024-05.xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Equal(t, "Tanggal", rows[0][0])

	rec = s.do(http.MethodGet, "/api/export.pdf?month=2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "laporan-2024-05.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = s.do(http.MethodGet, "/api/export.pdf?month=Mei", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendEndpoint(t *testing.T) {
	s := newServer(t, nil)
	s.do(http.MethodPost, "/api/transactions", `{"date":"2024-04-01","amount":500000,"category":"Uang Saku","type":"INCOME"}`)
	s.do(http.MethodPost, "/api/transactions", `{"date":"2024-05-02","amount":100000,"category":"Tabungan","type":"EXPENSE"}`)

	rec := s.do(http.MethodGet, "/api/trend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	points := decode[[]domain.TrendPoint](t, rec)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-04", points[0].Month)
	assert.Equal(t, "2024-05", points[1].Month)

	rec = s.do(http.MethodGet, "/api/trend?months=1", "")
	assert.Len(t, decode[[]domain.TrendPoint](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/trend?months=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	gen := &mockGenerator{GenerateJSONFunc: func(ctx context.Context, prompt string) (string, error) {
		return `{"breakdown":[],"insight":"Aman"}`, nil
	}}
	s := newServer(t, gen)
	s.do(http.MethodPost, "/api/transactions", `{"date":"2024-05-02","amount":10000,"category":"Makanan","type":"EXPENSE"}`)

	rec := s.do(http.MethodGet, "/api/analysis/2024-05", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/analysis/2024-05/classify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[ledger.ClassifyResult](t, rec)
	assert.False(t, res.Cached)
	assert.Equal(t, 100, res.Analysis.WantsPercentage)

	rec = s.do(http.MethodGet, "/api/analysis/2024-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Aman", decode[domain.MonthlyAnalysis](t, rec).Insight)

	rec = s.do(http.MethodDelete, "/api/analysis/2024-05", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/analysis/2024-05", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPut, "/api/analysis/2024-06", `{"needsTotal":1,"needsPercentage":100,"insight":"manual","breakdown":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/analysis/2024-06", "")
	assert.Equal(t, "manual", decode[domain.MonthlyAnalysis](t, rec).Insight)
}

func TestEnqueueClassifyJob(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/analysis/2024-13/jobs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/analysis/2024-05/jobs?force=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, string(jobs.JobStatusPending), body["status"])

	rec = s.do(http.MethodGet, "/api/jobs/"+body["job_id"], "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[jobs.ClassifyMonthJob](t, rec)
	assert.Equal(t, "2024-05", job.Month)
	assert.True(t, job.Force)

	rec = s.do(http.MethodGet, "/api/jobs?month=2024-05", "")
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["count"])

	rec = s.do(http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEndpoints(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/chat/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	started := decode[map[string]any](t, rec)
	id := started["id"].(string)
	assert.Equal(t, "idle", started["state"])

	rec = s.do(http.MethodPost, "/api/chat/sessions/"+id+"/messages", `{"text":"halo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[map[string]any](t, rec)["text"])

	rec = s.do(http.MethodPost, "/api/chat/sessions/"+id+"/messages", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/chat/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/chat/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/chat/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdvisorEndpoints(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/purchases/analyze", `{"item":"Headset","price":350000,"reason":"kuliah online"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	pa := decode[domain.PurchaseAnalysis](t, rec)
	assert.Equal(t, domain.Want, pa.Verdict)
	assert.Equal(t, 0, pa.Score)

	rec = s.do(http.MethodPost, "/api/transactions/parse", `{"text":"beli bakso 15rb"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodGet, "/api/advice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rec)["advice"])
}

func TestDebtEndpoints(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(http.MethodPost, "/api/debts", `{"person":"Rina","amount":50000,"type":"receivable","date":"2024-05-01","dueDate":"2024-06-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[domain.DebtRecord](t, rec)
	require.NotNil(t, d.DueDate)
	assert.Equal(t, domain.Unpaid, d.Status)

	rec = s.do(http.MethodPost, "/api/debts/"+d.ID+"/paid?companion=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[ledger.Settlement](t, rec)
	assert.True(t, st.Changed)
	require.NotNil(t, st.Companion)
	assert.Equal(t, domain.Income, st.Companion.Type)
	assert.Equal(t, domain.ReceivableSettledCategory, st.Companion.Category)

	rec = s.do(http.MethodPost, "/api/debts/missing/paid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/debts", `{"person":"Rina","amount":1,"type":"LOAN"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/api/debts", `{"person":"Rina","type":"PAYABLE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "amount is required")

	rec = s.do(http.MethodDelete, "/api/debts/"+d.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/debts", "")
	assert.Empty(t, decode[[]domain.DebtRecord](t, rec))
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
	_, err := time.Parse(time.RFC3339, body["time"])
	assert.NoError(t, err)
}

// companionFailingStore fails every AddTransaction so settling a debt with
// a companion leaves the debt paid but unrecorded.
type companionFailingStore struct {
	*store.Engine
}

func (companionFailingStore) AddTransaction(context.Context, domain.Transaction) error {
	return errors.New("disk full")
}

func TestMarkPaid_CompanionFailureIsMultiStatus(t *testing.T) {
	var engine *store.Engine
	s := newServerWithStore(t, nil, func(e *store.Engine) ledger.Store {
		engine = e
		return companionFailingStore{Engine: e}
	})

	rec := s.do(http.MethodPost, "/api/debts", `{"person":"Rina","amount":50000,"type":"PAYABLE","date":"2024-05-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[domain.DebtRecord](t, rec)

	rec = s.do(http.MethodPost, "/api/debts/"+d.ID+"/paid?companion=true", "")
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	var body struct {
		Settlement ledger.Settlement `json:"settlement"`
		Error      string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Settlement.Changed)
	assert.Equal(t, domain.Paid, body.Settlement.Debt.Status)
	assert.Nil(t, body.Settlement.Companion)
	assert.Contains(t, body.Error, "companion transaction not recorded")

	stored, err := engine.GetDebt(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Paid, stored.Status)
}
