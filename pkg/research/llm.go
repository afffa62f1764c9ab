package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-agent/pkg/clients"
)

// generate runs one completion and returns the first choice's text.
func generate(ctx context.Context, llm llms.Model, prompts []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := llm.GenerateContent(ctx, prompts, opts...)
	if err != nil {
		var pe *clients.ProviderError
		if errors.As(err, &pe) {
			return "", err
		}
		return "", &clients.ProviderError{Provider: clients.ProviderGemini, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func formatFindings(findings []Finding) string {
	if len(findings) == 0 {
		return "(no findings yet)"
	}
	var sb strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&sb, "[%d] Source: %s\n%s\n\n", i+1, f.Source, strings.TrimSpace(f.Text))
	}
	return strings.TrimSpace(sb.String())
}

func formatSummaries(summaries []string) string {
	if len(summaries) == 0 {
		return "(no summaries yet)"
	}
	var sb strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&sb, "Round %d: %s\n", i+1, strings.TrimSpace(s))
	}
	return strings.TrimSpace(sb.String())
}

// stripCodeFence removes a single markdown code fence wrapping content.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	} else {
		content = ""
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
