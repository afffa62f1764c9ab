package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ModelType is an enum for the available Google AI models.
type ModelType string

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel ModelType = "gemini-2.5-flash"
	ProModel     ModelType = "gemini-2.5-pro"
)

// Backend selects which SDK talks to Gemini.
type Backend string

const (
	BackendLangchain Backend = "langchaingo"
	BackendGenAI     Backend = "genai"
)

func GoogleAi(ctx context.Context, apiKey string, model ModelType) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: ProviderGemini, Message: "missing API key"}
	}
	if model == "" {
		model = DefaultModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to init google ai client: %w", err)
	}

	return llm, nil
}

// NewModel returns a text-generation model for the requested backend.
func NewModel(ctx context.Context, backend Backend, apiKey string, model ModelType) (llms.Model, error) {
	switch backend {
	case "", BackendLangchain:
		return GoogleAi(ctx, apiKey, model)
	case BackendGenAI:
		return NewGenAIModel(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unknown llm backend: %s", backend)
	}
}
