package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

const (
	DefaultModelName     = "gemini-2.5-flash"
	DefaultChatModelName = "gemini-2.5-flash"
)

// Gemini implements ChatStarter and Generator on the Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	chatModel string
	log       zerolog.Logger
}

// NewGemini creates a client. It returns ErrNoAPIKey when apiKey is empty.
func NewGemini(ctx context.Context, apiKey, model, chatModel string, log zerolog.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModelName
	}
	if chatModel == "" {
		chatModel = DefaultChatModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return &Gemini{
		client:    client,
		model:     model,
		chatModel: chatModel,
		log:       log.With().Str("component", "gemini").Logger(),
	}, nil
}

func (g *Gemini) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("GenerateJSON: generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("GenerateJSON: empty response from model")
	}
	return cleanModelJSON(text), nil
}

func (g *Gemini) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenerateText: generate content: %w", err)
	}
	return responseText(resp), nil
}

func (g *Gemini) StartChat(ctx context.Context, categories domain.CategorySet) (ChatModel, error) {
	chat, err := g.client.Chats.Create(ctx, g.chatModel, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: chatSystemInstruction(categories)}}},
		Tools:             []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{addTransactionDeclaration()}}},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("StartChat: create chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) SendTurn(ctx context.Context, text string) (ModelReply, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return ModelReply{}, fmt.Errorf("SendTurn: %w", err)
	}
	return toReply(resp), nil
}

func (c *geminiChat) SendToolResults(ctx context.Context, results []ToolResult) (ModelReply, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       r.CallID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Response},
		}})
	}
	resp, err := c.chat.SendMessage(ctx, parts...)
	if err != nil {
		return ModelReply{}, fmt.Errorf("SendToolResults: %w", err)
	}
	return toReply(resp), nil
}

func toReply(resp *genai.GenerateContentResponse) ModelReply {
	reply := ModelReply{Text: responseText(resp)}
	for _, fc := range resp.FunctionCalls() {
		if fc == nil {
			continue
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	return reply
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func addTransactionDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        AddTransactionTool,
		Description: "Catat transaksi keuangan (pemasukan atau pengeluaran) ke dalam aplikasi.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"type": {
					Type:        genai.TypeString,
					Enum:        []string{string(domain.Income), string(domain.Expense)},
					Description: "Tipe transaksi. INCOME untuk pemasukan, EXPENSE untuk pengeluaran.",
				},
				"amount": {
					Type:        genai.TypeNumber,
					Description: "Jumlah uang dalam Rupiah (angka saja).",
				},
				"category": {
					Type:        genai.TypeString,
					Description: "Kategori transaksi. Pilih yang paling sesuai dari daftar yang tersedia.",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "Keterangan singkat transaksi.",
				},
				"date": {
					Type:        genai.TypeString,
					Description: "Tanggal transaksi dalam format YYYY-MM-DD. Gunakan hari ini jika tidak disebutkan.",
				},
			},
			Required: []string{"type", "amount", "category"},
		},
	}
}
