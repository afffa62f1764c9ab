package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LLMSynthesizer writes the final report from the complete research history.
type LLMSynthesizer struct {
	LLM       llms.Model
	MaxTokens int
}

func NewLLMSynthesizer(llm llms.Model) *LLMSynthesizer {
	return &LLMSynthesizer{LLM: llm}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, topic string, findings []Finding, summaries []string) (string, error) {
	prompt := fmt.Sprintf(`Write a comprehensive research report on "%s".
Use every one of the following findings and round summaries.

# Findings

%s

# Round Summaries

%s

Format the report as Markdown with these sections, in order:
## Executive Summary
## Key Findings
## Detailed Analysis
## Implications
## Future Outlook
## Conclusion
## Sources and References

Cite the source URL inline, e.g. ([source](https://example.com)), whenever you use a finding.
List every cited URL under "Sources and References". If the findings are thin, say so plainly instead of inventing facts.`,
		topic, formatFindings(findings), formatSummaries(summaries))

	var opts []llms.CallOption
	if s.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.MaxTokens))
	}
	report, err := generate(ctx, s.LLM, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return "", err
	}

	report = strings.TrimSpace(report)
	if report == "" {
		return "", fmt.Errorf("llm returned an empty report")
	}
	return report, nil
}
