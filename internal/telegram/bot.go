// Package telegram exposes the chat assistant and monthly summaries
// through a Telegram bot. Each Telegram chat owns one assistant session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/ledger"
)

var timeNow = time.Now

// Sender is the part of tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Ledger is the service surface reachable from a chat.
type Ledger interface {
	StartChat(ctx context.Context) (*assistant.Session, error)
	SendChatTurn(ctx context.Context, id, text string) (assistant.ChatMessage, error)
	EndChat(id string)
	MonthlySummary(ctx context.Context, monthKey string) (domain.MonthlySummary, error)
	AdviseFinances(ctx context.Context, monthKey string) (string, error)
}

const helpText = `Halo! Aku asisten keuangan SakuPintar.

Ceritakan transaksimu, misalnya "tadi makan siang 25rb", dan aku akan mencatatnya.

Perintah:
/ringkasan [YYYY-MM] - ringkasan bulan ini atau bulan tertentu
/saran [YYYY-MM] - saran keuangan
/baru - mulai percakapan baru`

const (
	textOnlyText    = "Aku hanya bisa membaca pesan teks. Tulis transaksimu, misalnya \"beli pulsa 50rb\"."
	editIgnoredText = "Pesan yang diedit tidak diproses ulang. Kirim pesan baru kalau ada yang perlu dicatat."
)

// Bot routes Telegram messages to the ledger.
type Bot struct {
	api Sender
	svc Ledger
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]string
}

func New(api Sender, svc Ledger, log zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		svc:      svc,
		log:      log.With().Str("component", "telegram").Logger(),
		sessions: make(map[int64]string),
	}
}

// Run handles updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case u.Message != nil:
				b.HandleMessage(ctx, u.Message)
			case u.EditedMessage != nil:
				b.handleEdit(u.EditedMessage)
			}
		}
	}
}

// HandleMessage answers one message. Errors are reported to the chat and
// logged; they never stop the bot.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	log := b.log.With().Int64("chat_id", chatID).Logger()

	var (
		reply string
		err   error
	)
	switch {
	case msg.IsCommand():
		reply, err = b.command(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	case strings.TrimSpace(msg.Text) == "":
		reply = textOnlyText
	default:
		reply, err = b.chat(ctx, chatID, msg.Text)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to handle message")
		reply = errorReply(err)
	}
	if reply == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		log.Error().Err(err).Msg("Failed to send reply")
	}
}

// handleEdit tells the user that edits are not applied. The original
// message already went through the ledger once.
func (b *Bot) handleEdit(msg *tgbotapi.Message) {
	log := b.log.With().Int64("chat_id", msg.Chat.ID).Int("message_id", msg.MessageID).Logger()
	log.Info().Msg("Ignoring edited message")
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, editIgnoredText)); err != nil {
		log.Error().Err(err).Msg("Failed to send reply")
	}
}

func (b *Bot) command(ctx context.Context, chatID int64, cmd, args string) (string, error) {
	switch cmd {
	case "start", "help", "baru":
		b.reset(chatID)
		return helpText, nil
	case "ringkasan":
		s, err := b.svc.MonthlySummary(ctx, monthArg(args))
		if err != nil {
			return "", err
		}
		return FormatSummary(s), nil
	case "saran":
		return b.svc.AdviseFinances(ctx, monthArg(args))
	}
	return "Perintah tidak dikenal. Ketik /help untuk bantuan.", nil
}

func (b *Bot) chat(ctx context.Context, chatID int64, text string) (string, error) {
	id, err := b.sessionFor(ctx, chatID)
	if err != nil {
		return "", err
	}
	reply, err := b.svc.SendChatTurn(ctx, id, text)
	if errors.Is(err, ledger.ErrSessionNotFound) {
		// The service was restarted or the session ended elsewhere.
		b.reset(chatID)
		if id, err = b.sessionFor(ctx, chatID); err != nil {
			return "", err
		}
		reply, err = b.svc.SendChatTurn(ctx, id, text)
	}
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (b *Bot) sessionFor(ctx context.Context, chatID int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.sessions[chatID]; ok {
		return id, nil
	}
	sess, err := b.svc.StartChat(ctx)
	if err != nil {
		return "", fmt.Errorf("start chat: %w", err)
	}
	b.sessions[chatID] = sess.ID
	return sess.ID, nil
}

func (b *Bot) reset(chatID int64) {
	b.mu.Lock()
	id, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	if ok {
		b.svc.EndChat(id)
	}
}

// monthArg treats an empty argument as the current month. Anything else is
// passed through and validated by the service.
func monthArg(args string) string {
	if args == "" {
		return domain.MonthKey(timeNow())
	}
	return args
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return "Pesannya kosong."
	case errors.Is(err, ledger.ErrInvalidInput):
		return "Input tidak valid: " + err.Error()
	}
	return "Maaf, terjadi kesalahan. Coba lagi nanti."
}

// FormatSummary renders a monthly summary as a chat message.
func FormatSummary(s domain.MonthlySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ringkasan %s\n\n", s.Month)
	fmt.Fprintf(&b, "Pemasukan: %s\n", domain.FormatRupiah(s.Income))
	fmt.Fprintf(&b, "Pengeluaran: %s\n", domain.FormatRupiah(s.Expense))
	fmt.Fprintf(&b, "Saldo: %s\n", domain.FormatRupiah(s.Balance))
	fmt.Fprintf(&b, "Jumlah transaksi: %d\n", s.Count)

	var expenses []domain.CategoryTotal
	for _, c := range s.ByCategory {
		if c.Type == domain.Expense {
			expenses = append(expenses, c)
		}
	}
	if len(expenses) > 0 {
		b.WriteString("\nPengeluaran per kategori:\n")
		for _, c := range expenses {
			fmt.Fprintf(&b, "- %s: %s\n", c.Category, domain.FormatRupiah(c.Amount))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
