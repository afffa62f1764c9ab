package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// GenAIModel adapts the native Gemini SDK to the langchaingo llms.Model
// interface so the research engine can use either backend.
type GenAIModel struct {
	client *genai.Client
	model  string
}

var _ llms.Model = (*GenAIModel)(nil)

// NewGenAIModel creates a Gemini API client (API key auth).
func NewGenAIModel(ctx context.Context, apiKey string, model ModelType) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "missing API key"}
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GenAIModel{client: client, model: string(model)}, nil
}

func (m *GenAIModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	system, contents := toGenAIContents(messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no user content to send")
	}

	cfg := generateConfig(system, opts)

	model := m.model
	if opts.Model != "" {
		model = opts.Model
	}

	resp, err := m.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "no candidates returned"}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    resp.Text(),
				StopReason: string(resp.Candidates[0].FinishReason),
			},
		},
	}, nil
}

func (m *GenAIModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// toGenAIContents splits langchaingo messages into a system instruction and
// the conversation turns. Only text parts are forwarded.
func toGenAIContents(messages []llms.MessageContent) (*genai.Content, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		text := textParts(msg.Parts)
		if text == "" {
			continue
		}
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			system = append(system, text)
		case llms.ChatMessageTypeAI:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

func generateConfig(system *genai.Content, opts llms.CallOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}

func textParts(parts []llms.ContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if tc, ok := p.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
