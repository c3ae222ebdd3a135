package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/saku-tracker/internal/ledger"
)

type mockClassifier struct {
	ClassifyMonthFunc func(ctx context.Context, monthKey string, force bool) (ledger.ClassifyResult, error)
}

func (m *mockClassifier) ClassifyMonth(ctx context.Context, monthKey string, force bool) (ledger.ClassifyResult, error) {
	return m.ClassifyMonthFunc(ctx, monthKey, force)
}

type otherJob struct{}

func (otherJob) GetID() string        { return "x" }
func (otherJob) GetType() JobType     { return "other" }
func (otherJob) GetStatus() JobStatus { return JobStatusPending }

func TestClassifyHandler(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		result  ledger.ClassifyResult
		err     error
		wantErr error
	}{
		{name: "success", result: ledger.ClassifyResult{Month: "2024-05"}},
		{name: "cached", result: ledger.ClassifyResult{Month: "2024-05", Cached: true}},
		{name: "fallback is retried", result: ledger.ClassifyResult{Fallback: true}, wantErr: ErrModelFallback},
		{name: "ledger error", err: boom, wantErr: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMonth string
			var gotForce bool
			c := &mockClassifier{ClassifyMonthFunc: func(ctx context.Context, monthKey string, force bool) (ledger.ClassifyResult, error) {
				gotMonth, gotForce = monthKey, force
				return tt.result, tt.err
			}}
			h := NewClassifyHandler(c, zerolog.Nop())

			err := h(context.Background(), &ClassifyMonthJob{JobID: "j1", Month: "2024-05", Force: true})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "2024-05", gotMonth)
			assert.True(t, gotForce)
		})
	}
}

func TestClassifyHandler_RejectsOtherJobs(t *testing.T) {
	h := NewClassifyHandler(&mockClassifier{}, zerolog.Nop())
	assert.Error(t, h(context.Background(), otherJob{}))
}
