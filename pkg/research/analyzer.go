package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrMalformedAnalysis marks an analyzer response that does not have the
// expected shape.
var ErrMalformedAnalysis = errors.New("malformed analysis response")

// AnalysisInput carries everything the gap analyzer needs. Findings and
// Summaries are the full accumulated history, not just the last iteration.
type AnalysisInput struct {
	OriginalTopic string
	CurrentTopic  string
	Findings      []Finding
	Summaries     []string
	Depth         int
	MaxDepth      int
}

// LLMAnalyzer asks a language model to summarize the findings and name the
// remaining knowledge gaps.
type LLMAnalyzer struct {
	LLM llms.Model
	// MaxTokens caps the response length, thinking tokens included. Zero
	// leaves the backend default.
	MaxTokens int
}

func NewLLMAnalyzer(llm llms.Model) *LLMAnalyzer {
	return &LLMAnalyzer{LLM: llm}
}

const analyzerSystemPrompt = `You are a research analyst supervising a multi-round web research process.
Review the findings gathered so far and:
1. Write a concise summary of what the findings establish in this round.
2. List specific follow-up research questions that the findings leave unanswered. Each must be a self-contained search query, and there should be at least one unless the research is complete.
3. Decide whether another research round is needed to cover the original topic comprehensively.
Judge completeness against the ORIGINAL research topic, not only the current sub-question.`

func (a *LLMAnalyzer) Analyze(ctx context.Context, in AnalysisInput) (*Analysis, error) {
	input := fmt.Sprintf(`Original research topic: %s
Current sub-question: %s
Research round: %d of %d

Findings so far:
%s

Previous summaries:
%s`, in.OriginalTopic, in.CurrentTopic, in.Depth+1, in.MaxDepth,
		formatFindings(in.Findings), formatSummaries(in.Summaries))

	opts := []llms.CallOption{llms.WithJSONMode()}
	if a.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.MaxTokens))
	}
	content, err := generate(ctx, a.LLM, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, analyzerSystemPrompt+"\n\n# Response Format:\n\n"+CreateAnalysisSchema()),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}

	return ParseAnalysis(content)
}

func CreateAnalysisSchema() string {
	return `Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "summary": {
      "type": "string",
      "description": "Concise summary of the current findings"
    },
    "gaps": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "description": "Specific follow-up research questions"
    },
    "shouldContinue": {
      "type": "boolean",
      "description": "Whether another research round is needed"
    }
  },
  "required": ["summary", "gaps", "shouldContinue"]
}`
}

// ParseAnalysis decodes an analyzer response. All three fields must be
// present with the right types and the summary must not be blank; nothing is
// defaulted.
func ParseAnalysis(content string) (*Analysis, error) {
	var raw struct {
		Summary        *string   `json:"summary"`
		Gaps           *[]string `json:"gaps"`
		ShouldContinue *bool     `json:"shouldContinue"`
	}

	body := stripCodeFence(content)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAnalysis)
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	var missing []string
	if raw.Summary == nil {
		missing = append(missing, "summary")
	}
	if raw.Gaps == nil {
		missing = append(missing, "gaps")
	}
	if raw.ShouldContinue == nil {
		missing = append(missing, "shouldContinue")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedAnalysis, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(*raw.Summary) == "" {
		return nil, fmt.Errorf("%w: blank summary", ErrMalformedAnalysis)
	}

	return &Analysis{
		Summary:        strings.TrimSpace(*raw.Summary),
		Gaps:           *raw.Gaps,
		ShouldContinue: *raw.ShouldContinue,
	}, nil
}
