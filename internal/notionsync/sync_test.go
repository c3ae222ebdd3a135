package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

type mockNotion struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error

	created []notionapi.Properties
	updated []string
	deleted []string
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: "new"}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.UpdatePageFunc != nil {
		return m.UpdatePageFunc(ctx, pageID, properties)
	}
	m.updated = append(m.updated, pageID)
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, filter)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	if m.DeletePageFunc != nil {
		return m.DeletePageFunc(ctx, pageID)
	}
	m.deleted = append(m.deleted, pageID)
	return nil
}

func txPage(pageID, txID, month string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: txID}}},
			PropMonth:         &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: month}}},
		},
	}
}

func debtPage(pageID, debtID string, status domain.DebtStatus) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropDebtID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: debtID}}},
			PropStatus: &notionapi.SelectProperty{Select: notionapi.Option{Name: string(status)}},
		},
	}
}

func pagesOf(pages ...notionapi.Page) func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		return &notionapi.DatabaseQueryResponse{Results: pages}, nil
	}
}

func tx(id string, day int) domain.Transaction {
	return domain.Transaction{
		ID:       id,
		Date:     time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromInt(25000),
		Category: "Makanan",
		Type:     domain.Expense,
	}
}

func TestSyncTransactions(t *testing.T) {
	m := &mockNotion{QueryDatabaseFunc: pagesOf(
		txPage("p1", "t1", "2024-03"),
		txPage("p2", "gone", "2024-03"),
		txPage("p3", "other", "2024-02"),
	)}

	res, err := SyncTransactions(context.Background(), m, "db", []domain.Transaction{tx("t1", 1), tx("t2", 2)}, "2024-03", false)
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 1, Deleted: 1, Skipped: 1}, res)
	assert.Equal(t, []string{"p2"}, m.deleted, "pages outside the month are left alone")
	require.Len(t, m.created, 1)
	id := m.created[0][PropTransactionID].(notionapi.RichTextProperty)
	assert.Equal(t, "t2", id.RichText[0].Text.Content)
}

func TestSyncTransactions_AllMonthsDeletesEveryStalePage(t *testing.T) {
	m := &mockNotion{QueryDatabaseFunc: pagesOf(
		txPage("p2", "gone", "2024-03"),
		txPage("p3", "other", "2024-02"),
	)}

	res, err := SyncTransactions(context.Background(), m, "db", nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.ElementsMatch(t, []string{"p2", "p3"}, m.deleted)
}

func TestSyncTransactions_DryRun(t *testing.T) {
	m := &mockNotion{QueryDatabaseFunc: pagesOf(txPage("p2", "gone", "2024-03"))}

	res, err := SyncTransactions(context.Background(), m, "db", []domain.Transaction{tx("t1", 1)}, "", true)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Deleted: 1}, res)
	assert.Empty(t, m.created)
	assert.Empty(t, m.deleted)
}

func TestSyncTransactions_Failures(t *testing.T) {
	t.Run("query error aborts", func(t *testing.T) {
		m := &mockNotion{QueryDatabaseFunc: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		}}
		_, err := SyncTransactions(context.Background(), m, "db", nil, "", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unauthorized")
	})

	t.Run("create error is counted", func(t *testing.T) {
		m := &mockNotion{CreatePageFunc: func(context.Context, string, notionapi.Properties) (*notionapi.Page, error) {
			return nil, errors.New("rate limited")
		}}
		res, err := SyncTransactions(context.Background(), m, "db", []domain.Transaction{tx("t1", 1), tx("t2", 2)}, "", false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Failed)
	})
}

func TestQueryAllNotionPages_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	m := &mockNotion{QueryDatabaseFunc: func(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		cursors = append(cursors, req.StartCursor)
		if req.StartCursor == "" {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "a"}}, HasMore: true, NextCursor: "c1"}, nil
		}
		return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "b"}}}, nil
	}}

	pages, err := queryAllNotionPages(context.Background(), m, "db")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []notionapi.Cursor{"", "c1"}, cursors)
}

func TestSyncDebts(t *testing.T) {
	debts := []domain.DebtRecord{
		{ID: "d1", Person: "Budi", Amount: decimal.NewFromInt(50000), Type: domain.Payable, Status: domain.Paid},
		{ID: "d2", Person: "Sari", Amount: decimal.NewFromInt(20000), Type: domain.Receivable, Status: domain.Unpaid},
		{ID: "d3", Person: "Andi", Amount: decimal.NewFromInt(10000), Type: domain.Receivable, Status: domain.Unpaid},
	}
	m := &mockNotion{QueryDatabaseFunc: pagesOf(
		debtPage("p1", "d1", domain.Unpaid),
		debtPage("p2", "d2", domain.Unpaid),
		debtPage("p3", "old", domain.Unpaid),
	)}

	res, err := SyncDebts(context.Background(), m, "db", debts, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Updated: 1, Deleted: 1, Skipped: 1}, res)
	assert.Equal(t, []string{"p1"}, m.updated)
	assert.Equal(t, []string{"p3"}, m.deleted)
}
