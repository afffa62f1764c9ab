package clients

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantKind     ErrorKind
		wantProvider string
	}{
		{"nil", nil, KindOther, ""},
		{"unauthorized status", &ProviderError{Provider: ProviderFirecrawl, StatusCode: http.StatusUnauthorized}, KindCredentials, ProviderFirecrawl},
		{"forbidden status", &ProviderError{Provider: ProviderBrave, StatusCode: http.StatusForbidden}, KindCredentials, ProviderBrave},
		{"too many requests", &ProviderError{Provider: ProviderFirecrawl, StatusCode: http.StatusTooManyRequests}, KindQuota, ProviderFirecrawl},
		{"payment required", &ProviderError{Provider: ProviderFirecrawl, StatusCode: http.StatusPaymentRequired}, KindQuota, ProviderFirecrawl},
		{"wrapped provider error", fmt.Errorf("report generation failed: %w", &ProviderError{Provider: ProviderGemini, Err: errors.New("googleapi: Error 400: API key not valid")}), KindCredentials, ProviderGemini},
		{"sdk quota message", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED: quota exceeded"), KindQuota, ""},
		{"plain failure", &ProviderError{Provider: ProviderFirecrawl, StatusCode: http.StatusInternalServerError, Message: "boom"}, KindOther, ProviderFirecrawl},
		{"unrelated", errors.New("connection reset by peer"), KindOther, ""},
		{"genai api error", &ProviderError{Provider: ProviderGemini, Err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}}, KindQuota, ProviderGemini},
		{"googleapi error", fmt.Errorf("generate: %w", &googleapi.Error{Code: 403, Message: "denied"}), KindCredentials, ""},
		{"labelled status in message", errors.New("googleapi: Error 429: slow down"), KindQuota, ""},
		{"status code in message", errors.New("unexpected status code: 401"), KindCredentials, ""},
		{"digits in an id", errors.New("page 4291 of doc-401 returned 403 paragraphs"), KindOther, ""},
		{"digits in a url", &ProviderError{Provider: ProviderFirecrawl, Err: errors.New("fetch https://example.com/items/429 timed out")}, KindOther, ProviderFirecrawl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, provider := Classify(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantProvider, provider)
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Provider: ProviderFirecrawl, StatusCode: 500, Message: "internal"}
	assert.Equal(t, "Firecrawl request failed with status 500: internal", err.Error())

	inner := errors.New("dial tcp: timeout")
	err = &ProviderError{Provider: ProviderGemini, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestToGenAIContents(t *testing.T) {
	system, contents := toGenAIContents([]llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "be terse"),
		llms.TextParts(llms.ChatMessageTypeHuman, "question"),
		llms.TextParts(llms.ChatMessageTypeAI, "answer"),
		llms.TextParts(llms.ChatMessageTypeHuman, ""),
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "be terse", system.Parts[0].Text)

	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, "question", contents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
}

func TestGenerateConfigJSONMode(t *testing.T) {
	cfg := generateConfig(nil, llms.CallOptions{JSONMode: true, Temperature: 0.2})
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, *cfg.Temperature, 0.0001)

	cfg = generateConfig(nil, llms.CallOptions{})
	assert.Empty(t, cfg.ResponseMIMEType)
	assert.Nil(t, cfg.Temperature)
	assert.Zero(t, cfg.MaxOutputTokens)
}

func TestGenerateConfigMaxTokens(t *testing.T) {
	opts := llms.CallOptions{}
	llms.WithMaxTokens(16384)(&opts)

	cfg := generateConfig(nil, opts)
	assert.Equal(t, int32(16384), cfg.MaxOutputTokens)
}
