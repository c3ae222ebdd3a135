package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("assistant: empty message")

// maxToolRounds bounds how many times one user turn may loop through tool
// execution before the session gives up.
const maxToolRounds = 3

// State is the position of a session in its turn cycle.
type State int

const (
	Idle State = iota
	AwaitingModelResponse
	ExecutingTool
	AwaitingFollowup
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingModelResponse:
		return "awaiting_model_response"
	case ExecutingTool:
		return "executing_tool"
	case AwaitingFollowup:
		return "awaiting_followup"
	}
	return "unknown"
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session drives one conversation. Failures are per turn: the session stays
// usable after any model or storage error. Turns on the same session are
// serialized.
type Session struct {
	ID string

	mu         sync.Mutex
	model      ChatModel
	sink       TransactionSink
	categories domain.CategorySet
	matcher    CategoryMatcher
	log        zerolog.Logger
	now        func() time.Time

	state      State
	transcript []ChatMessage
}

// NewSession opens a chat through starter. When the model cannot be
// reached the session still works and answers every turn with a fallback.
func NewSession(ctx context.Context, starter ChatStarter, sink TransactionSink, cats domain.CategorySet, matcher CategoryMatcher, log zerolog.Logger) *Session {
	id := uuid.NewString()
	log = log.With().Str("session_id", id).Logger()

	model, err := starter.StartChat(ctx, cats)
	if err != nil {
		log.Warn().Err(err).Msg("starting chat failed; session will use fallbacks")
		model = Disabled{}
	}
	if matcher == nil {
		matcher = LexicalMatcher{}
	}

	s := &Session{
		ID:         id,
		model:      model,
		sink:       sink,
		categories: cats,
		matcher:    matcher,
		log:        log,
		now:        time.Now,
	}
	s.transcript = []ChatMessage{{ID: "welcome", Role: RoleModel, Text: welcomeText, Timestamp: s.now()}}
	return s
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of every message so far, welcome first.
func (s *Session) Transcript() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Send runs one user turn and returns the model's final message. The only
// error is ErrEmptyMessage; model and storage failures become fallback
// text in the returned message.
func (s *Session) Send(ctx context.Context, text string) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(RoleUser, text)
	s.state = AwaitingModelResponse

	reply, err := s.model.SendTurn(ctx, text)
	if err != nil {
		s.log.Error().Err(err).Msg("chat turn failed")
		return s.finish(fallbackConnection), nil
	}

	saved := 0
	for round := 0; len(reply.ToolCalls) > 0; round++ {
		if round == maxToolRounds {
			s.log.Warn().Int("rounds", round).Msg("tool rounds exhausted")
			if strings.TrimSpace(reply.Text) != "" {
				return s.finish(reply.Text), nil
			}
			return s.finish(fallbackToolLoop), nil
		}

		s.state = ExecutingTool
		results := make([]ToolResult, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			res := s.execute(ctx, call)
			if res.Response["status"] == "Success" {
				saved++
			}
			results = append(results, res)
		}

		s.state = AwaitingFollowup
		reply, err = s.model.SendToolResults(ctx, results)
		if err != nil {
			s.log.Error().Err(err).Msg("sending tool results failed")
			if saved > 0 {
				return s.finish(fallbackAfterSave), nil
			}
			return s.finish(fallbackConnection), nil
		}
		if len(reply.ToolCalls) == 0 && strings.TrimSpace(reply.Text) == "" {
			return s.finish(fallbackFollowup), nil
		}
	}

	if strings.TrimSpace(reply.Text) == "" {
		return s.finish(fallbackNoText), nil
	}
	return s.finish(reply.Text), nil
}

func (s *Session) execute(ctx context.Context, call ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Name: call.Name}
	log := s.log.With().Str("tool", call.Name).Str("call_id", call.ID).Logger()

	if call.Name != AddTransactionTool {
		log.Warn().Msg("model requested unknown tool")
		res.Response = toolError("unknown tool " + call.Name)
		return res
	}

	args, err := decodeAddTransaction(ctx, call.Args, s.categories, s.matcher, s.now())
	if err != nil {
		log.Warn().Err(err).Interface("args", call.Args).Msg("invalid tool arguments")
		res.Response = toolError("invalid arguments: " + err.Error())
		return res
	}

	t, err := s.sink.AddTransaction(ctx, domain.Transaction{
		Date:        args.Date,
		Amount:      args.Amount,
		Category:    args.Category,
		Description: args.Description,
		Type:        args.Type,
	})
	if err != nil {
		log.Error().Err(err).Msg("saving transaction from tool call failed")
		res.Response = toolError("failed to save transaction: " + err.Error())
		return res
	}

	log.Info().Str("transaction_id", t.ID).Str("category", t.Category).Msg("transaction saved from chat")
	res.Response = toolSuccess(t)
	return res
}

func (s *Session) append(role Role, text string) ChatMessage {
	m := ChatMessage{ID: uuid.NewString(), Role: role, Text: text, Timestamp: s.now()}
	s.transcript = append(s.transcript, m)
	return m
}

func (s *Session) finish(text string) ChatMessage {
	s.state = Idle
	return s.append(RoleModel, text)
}
