package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

type mockSender struct {
	sent []tgbotapi.MessageConfig
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (m *mockSender) last() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

type mockLedger struct {
	StartChatFunc      func(ctx context.Context) (*assistant.Session, error)
	SendChatTurnFunc   func(ctx context.Context, id, text string) (assistant.ChatMessage, error)
	MonthlySummaryFunc func(ctx context.Context, monthKey string) (domain.MonthlySummary, error)
	AdviseFinancesFunc func(ctx context.Context, monthKey string) (string, error)

	started int
	ended   []string
}

func (m *mockLedger) StartChat(ctx context.Context) (*assistant.Session, error) {
	m.started++
	if m.StartChatFunc != nil {
		return m.StartChatFunc(ctx)
	}
	return &assistant.Session{ID: "s" + string(rune('0'+m.started))}, nil
}

func (m *mockLedger) SendChatTurn(ctx context.Context, id, text string) (assistant.ChatMessage, error) {
	if m.SendChatTurnFunc != nil {
		return m.SendChatTurnFunc(ctx, id, text)
	}
	return assistant.ChatMessage{Role: assistant.RoleModel, Text: id + ":" + text}, nil
}

func (m *mockLedger) EndChat(id string) { m.ended = append(m.ended, id) }

func (m *mockLedger) MonthlySummary(ctx context.Context, monthKey string) (domain.MonthlySummary, error) {
	if m.MonthlySummaryFunc != nil {
		return m.MonthlySummaryFunc(ctx, monthKey)
	}
	return domain.MonthlySummary{Month: monthKey}, nil
}

func (m *mockLedger) AdviseFinances(ctx context.Context, monthKey string) (string, error) {
	if m.AdviseFinancesFunc != nil {
		return m.AdviseFinancesFunc(ctx, monthKey)
	}
	return "hemat ya " + monthKey, nil
}

func text(chatID int64, s string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: s, Chat: &tgbotapi.Chat{ID: chatID}}
}

func command(chatID int64, cmd, args string) *tgbotapi.Message {
	s := "/" + cmd
	if args != "" {
		s += " " + args
	}
	return &tgbotapi.Message{
		Text:     s,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
	}
}

func TestHandleMessage_ChatSessionPerChat(t *testing.T) {
	api, svc := &mockSender{}, &mockLedger{}
	b := New(api, svc, zerolog.Nop())
	ctx := context.Background()

	b.HandleMessage(ctx, text(1, "makan 25rb"))
	assert.Equal(t, "s1:makan 25rb", api.last())
	b.HandleMessage(ctx, text(1, "lagi"))
	assert.Equal(t, "s1:lagi", api.last())
	b.HandleMessage(ctx, text(2, "halo"))
	assert.Equal(t, "s2:halo", api.last())
	assert.Equal(t, 2, svc.started)
	require.Len(t, api.sent, 3)
	assert.Equal(t, int64(2), api.sent[2].ChatID)
}

func TestHandleMessage_StartResetsSession(t *testing.T) {
	api, svc := &mockSender{}, &mockLedger{}
	b := New(api, svc, zerolog.Nop())
	ctx := context.Background()

	b.HandleMessage(ctx, text(1, "halo"))
	b.HandleMessage(ctx, command(1, "start", ""))
	assert.Equal(t, helpText, api.last())
	assert.Equal(t, []string{"s1"}, svc.ended)

	b.HandleMessage(ctx, text(1, "halo lagi"))
	assert.Equal(t, "s2:halo lagi", api.last())
}

func TestHandleMessage_RecoversLostSession(t *testing.T) {
	api := &mockSender{}
	svc := &mockLedger{}
	svc.SendChatTurnFunc = func(_ context.Context, id, text string) (assistant.ChatMessage, error) {
		if id == "s1" {
			return assistant.ChatMessage{}, ledger.ErrSessionNotFound
		}
		return assistant.ChatMessage{Text: "ok " + id}, nil
	}
	b := New(api, svc, zerolog.Nop())

	b.HandleMessage(context.Background(), text(1, "halo"))
	assert.Equal(t, "ok s2", api.last())
}

func TestHandleMessage_Commands(t *testing.T) {
	timeNow = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = time.Now })

	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want string
	}{
		{"summary defaults to current month", command(1, "ringkasan", ""), "Ringkasan 2024-03"},
		{"summary for month", command(1, "ringkasan", "2024-01"), "Ringkasan 2024-01"},
		{"advice", command(1, "saran", "2024-02"), "hemat ya 2024-02"},
		{"unknown", command(1, "foo", ""), "Perintah tidak dikenal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSender{}
			New(api, &mockLedger{}, zerolog.Nop()).HandleMessage(context.Background(), tt.msg)
			assert.Contains(t, api.last(), tt.want)
		})
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	svc := &mockLedger{
		MonthlySummaryFunc: func(context.Context, string) (domain.MonthlySummary, error) {
			return domain.MonthlySummary{}, ledger.ErrInvalidInput
		},
		AdviseFinancesFunc: func(context.Context, string) (string, error) {
			return "", errors.New("boom")
		},
	}
	api := &mockSender{}
	b := New(api, svc, zerolog.Nop())

	b.HandleMessage(context.Background(), command(1, "ringkasan", "bulan-lalu"))
	assert.Contains(t, api.last(), "Input tidak valid")

	b.HandleMessage(context.Background(), command(1, "saran", ""))
	assert.Contains(t, api.last(), "Maaf")
}

func TestRun_StopsOnClosedChannel(t *testing.T) {
	api := &mockSender{}
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: text(1, "halo")}
	close(updates)

	err := New(api, &mockLedger{}, zerolog.Nop()).Run(context.Background(), updates)
	require.NoError(t, err)
	assert.Len(t, api.sent, 1)
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(domain.MonthlySummary{
		Month:   "2024-03",
		Income:  decimal.NewFromInt(1000000),
		Expense: decimal.NewFromInt(250000),
		Balance: decimal.NewFromInt(750000),
		Count:   3,
		ByCategory: []domain.CategoryTotal{
			{Category: "Makanan", Type: domain.Expense, Amount: decimal.NewFromInt(250000)},
			{Category: "Uang Saku", Type: domain.Income, Amount: decimal.NewFromInt(1000000)},
		},
	})
	assert.Contains(t, out, "Saldo: Rp 750.000")
	assert.Contains(t, out, "- Makanan: Rp 250.000")
	assert.NotContains(t, out, "- Uang Saku")
}

func TestRun_EditedMessageIsNotReplayed(t *testing.T) {
	api := &mockSender{}
	turns := 0
	svc := &mockLedger{SendChatTurnFunc: func(ctx context.Context, id, text string) (assistant.ChatMessage, error) {
		turns++
		return assistant.ChatMessage{Role: assistant.RoleModel, Text: "dicatat"}, nil
	}}
	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{Message: text(1, "beli bakso 15rb")}
	updates <- tgbotapi.Update{EditedMessage: text(1, "beli bakso 20rb")}
	close(updates)

	require.NoError(t, New(api, svc, zerolog.Nop()).Run(context.Background(), updates))
	assert.Equal(t, 1, turns, "the edit never reaches the ledger")
	require.Len(t, api.sent, 2)
	assert.Equal(t, editIgnoredText, api.last())
}

func TestHandleMessage_NonTextMessage(t *testing.T) {
	api := &mockSender{}
	svc := &mockLedger{SendChatTurnFunc: func(ctx context.Context, id, text string) (assistant.ChatMessage, error) {
		t.Fatal("non-text messages must not start a chat turn")
		return assistant.ChatMessage{}, nil
	}}
	sticker := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Sticker: &tgbotapi.Sticker{FileID: "abc"}}

	New(api, svc, zerolog.Nop()).HandleMessage(context.Background(), sticker)
	assert.Equal(t, textOnlyText, api.last())
	assert.Zero(t, svc.started)
}

func TestErrorReply(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty message wrapped as invalid input", fmt.Errorf("%w: %w", ledger.ErrInvalidInput, assistant.ErrEmptyMessage), "Pesannya kosong."},
		{"invalid input", fmt.Errorf("%w: amount", ledger.ErrInvalidInput), "Input tidak valid: "},
		{"other", errors.New("boom"), "Maaf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, errorReply(tt.err), tt.want)
		})
	}
}
