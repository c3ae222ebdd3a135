package bigquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/events"
)

type mockSink struct {
	InsertFunc func(ctx context.Context, txs []domain.Transaction) error
	DeleteFunc func(ctx context.Context, id string) error

	inserted []domain.Transaction
	deleted  []string
}

func (m *mockSink) Insert(ctx context.Context, txs []domain.Transaction) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, txs)
	}
	m.inserted = append(m.inserted, txs...)
	return nil
}

func (m *mockSink) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func TestEventHandler(t *testing.T) {
	tx := domain.Transaction{
		ID: "t1", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(15000), Category: "Makanan", Type: domain.Expense,
	}
	added, err := events.New(events.TransactionAdded, tx)
	require.NoError(t, err)
	deleted, err := events.New(events.TransactionDeleted, map[string]string{"id": "t1"})
	require.NoError(t, err)
	other, err := events.New(events.DebtPaid, map[string]string{"id": "d1"})
	require.NoError(t, err)

	sink := &mockSink{}
	h := EventHandler(sink, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, h(ctx, added))
	require.NoError(t, h(ctx, deleted))
	require.NoError(t, h(ctx, other))

	require.Len(t, sink.inserted, 1)
	assert.Equal(t, "t1", sink.inserted[0].ID)
	assert.True(t, tx.Amount.Equal(sink.inserted[0].Amount))
	assert.Equal(t, []string{"t1"}, sink.deleted)
}

func TestEventHandler_Errors(t *testing.T) {
	sink := &mockSink{InsertFunc: func(context.Context, []domain.Transaction) error {
		return errors.New("quota exceeded")
	}}
	h := EventHandler(sink, zerolog.Nop())

	added, err := events.New(events.TransactionAdded, domain.Transaction{ID: "t1"})
	require.NoError(t, err)
	err = h(context.Background(), added)
	require.Error(t, err, "sink failures requeue")

	malformed := events.Event{ID: "e1", Type: events.TransactionDeleted, Payload: []byte(`{}`)}
	assert.NoError(t, h(context.Background(), malformed), "malformed payloads are acknowledged")
}
