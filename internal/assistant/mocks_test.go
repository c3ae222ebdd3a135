package assistant

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

type mockChat struct {
	SendTurnFunc        func(ctx context.Context, text string) (ModelReply, error)
	SendToolResultsFunc func(ctx context.Context, results []ToolResult) (ModelReply, error)

	toolBatches [][]ToolResult
}

func (m *mockChat) SendTurn(ctx context.Context, text string) (ModelReply, error) {
	return m.SendTurnFunc(ctx, text)
}

func (m *mockChat) SendToolResults(ctx context.Context, results []ToolResult) (ModelReply, error) {
	m.toolBatches = append(m.toolBatches, results)
	if m.SendToolResultsFunc == nil {
		return ModelReply{Text: "Sudah dicatat!"}, nil
	}
	return m.SendToolResultsFunc(ctx, results)
}

type mockStarter struct {
	chat ChatModel
	err  error
	cats domain.CategorySet
}

func (m *mockStarter) StartChat(ctx context.Context, cats domain.CategorySet) (ChatModel, error) {
	m.cats = cats
	return m.chat, m.err
}

type mockGenerator struct {
	GenerateJSONFunc func(ctx context.Context, prompt string) (string, error)
	GenerateTextFunc func(ctx context.Context, system, prompt string) (string, error)
}

func (m *mockGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if m.GenerateJSONFunc == nil {
		return "", errors.New("not implemented")
	}
	return m.GenerateJSONFunc(ctx, prompt)
}

func (m *mockGenerator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if m.GenerateTextFunc == nil {
		return "", errors.New("not implemented")
	}
	return m.GenerateTextFunc(ctx, system, prompt)
}

type memorySink struct {
	mu    sync.Mutex
	saved []domain.Transaction
	err   error
}

func (s *memorySink) AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Transaction{}, s.err
	}
	t.ID = uuid.NewString()
	s.saved = append(s.saved, t)
	return t, nil
}
