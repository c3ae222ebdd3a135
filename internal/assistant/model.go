// Package assistant talks to the language model: the tool-calling chat
// session, the needs/wants classifier, the purchase advisor and the
// free-text transaction parser. Every entry point returns a usable value
// even when the model is unreachable.
package assistant

import (
	"context"
	"errors"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// ErrNoAPIKey is returned by NewGemini when no key is configured.
var ErrNoAPIKey = errors.New("assistant: no model API key configured")

// ToolCall is a model request to run a named local action.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID   string
	Name     string
	Response map[string]any
}

// ModelReply is either free text or one or more tool calls.
type ModelReply struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatModel is one stateful conversation with the model.
type ChatModel interface {
	SendTurn(ctx context.Context, text string) (ModelReply, error)
	SendToolResults(ctx context.Context, results []ToolResult) (ModelReply, error)
}

// ChatStarter opens conversations that know the current categories.
type ChatStarter interface {
	StartChat(ctx context.Context, categories domain.CategorySet) (ChatModel, error)
}

// Generator runs stateless single-shot prompts.
type Generator interface {
	// GenerateJSON returns a raw JSON document.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	// GenerateText returns free text under the given system instruction.
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Disabled stands in for the model when none is configured. Every call
// fails with ErrNoAPIKey so callers fall back.
type Disabled struct{}

func (Disabled) StartChat(ctx context.Context, categories domain.CategorySet) (ChatModel, error) {
	return Disabled{}, nil
}

func (Disabled) SendTurn(ctx context.Context, text string) (ModelReply, error) {
	return ModelReply{}, ErrNoAPIKey
}

func (Disabled) SendToolResults(ctx context.Context, results []ToolResult) (ModelReply, error) {
	return ModelReply{}, ErrNoAPIKey
}

func (Disabled) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return "", ErrNoAPIKey
}

func (Disabled) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return "", ErrNoAPIKey
}
