package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/saku-tracker/internal/assistant"
	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/store"
)

// chatSink adapts the service for tool calls. A transaction that reached
// memory but not the durable image counts as saved; the image is rewritten
// on the next flush.
type chatSink struct {
	s *Service
}

func (c chatSink) AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	saved, err := c.s.AddTransaction(ctx, t)
	if errors.Is(err, store.ErrPersist) {
		c.s.log.Warn().Err(err).Str("transaction_id", saved.ID).Msg("chat transaction kept in memory only")
		return saved, nil
	}
	return saved, err
}

// StartChat opens a new session seeded with the current categories and
// registers it under its id.
func (s *Service) StartChat(ctx context.Context) (*assistant.Session, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	sess := assistant.NewSession(ctx, s.chat, chatSink{s}, cats, s.matcher, s.log)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.Info().Str("session_id", sess.ID).Msg("chat session started")
	return sess, nil
}

func (s *Service) session(id string) (*assistant.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// SendChatTurn sends text on session id and returns the model's reply.
func (s *Service) SendChatTurn(ctx context.Context, id, text string) (assistant.ChatMessage, error) {
	sess, err := s.session(id)
	if err != nil {
		return assistant.ChatMessage{}, err
	}
	msg, err := sess.Send(ctx, text)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		return msg, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return msg, err
}

// ChatTranscript returns every message of session id.
func (s *Service) ChatTranscript(id string) ([]assistant.ChatMessage, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.Transcript(), nil
}

// EndChat forgets session id. Unknown ids are ignored.
func (s *Service) EndChat(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
