package research

import (
	"context"
	"fmt"

	"github.com/mikeboe/research-agent/pkg/clients"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/research/tools"
)

// ConfigFrom maps application configuration onto engine tuning.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg.ExtractLimit > 0 {
		c.ExtractLimit = cfg.ExtractLimit
	}
	if cfg.FallbackLimit > 0 {
		c.FallbackLimit = cfg.FallbackLimit
	}
	if cfg.FindingMaxChars >= 0 {
		c.FindingMaxChars = cfg.FindingMaxChars
	}
	if cfg.CallTimeout > 0 {
		c.CallTimeout = cfg.CallTimeout
	}
	return c
}

// NewEngineFromConfig wires the configured providers into an engine. It
// expects cfg to have passed Validate.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config) (*ResearchEngine, error) {
	firecrawl := tools.NewFirecrawl(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL)
	if cfg.SearchLimit > 0 {
		firecrawl.SearchLimit = cfg.SearchLimit
	}

	var finder SourceFinder
	switch cfg.SearchProvider {
	case "", config.SearchFirecrawl:
		finder = firecrawl
	case config.SearchBrave:
		brave := tools.NewBrave(cfg.BraveAPIKey)
		if cfg.SearchLimit > 0 {
			brave.Count = cfg.SearchLimit
		}
		finder = brave
	case config.SearchArxiv:
		arxiv := tools.NewArxiv()
		if cfg.SearchLimit > 0 {
			arxiv.MaxResults = cfg.SearchLimit
		}
		finder = arxiv
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.SearchProvider)
	}

	backend := clients.Backend(cfg.LLMBackend)
	analysisLLM, err := clients.NewModel(ctx, backend, cfg.GeminiAPIKey, clients.ModelType(cfg.AnalysisModel))
	if err != nil {
		return nil, fmt.Errorf("failed to init analysis model: %w", err)
	}
	reportLLM := analysisLLM
	if cfg.ReportModel != "" && cfg.ReportModel != cfg.AnalysisModel {
		reportLLM, err = clients.NewModel(ctx, backend, cfg.GeminiAPIKey, clients.ModelType(cfg.ReportModel))
		if err != nil {
			return nil, fmt.Errorf("failed to init report model: %w", err)
		}
	}

	analyzer := NewLLMAnalyzer(analysisLLM)
	analyzer.MaxTokens = cfg.AnalysisMaxTokens
	synthesizer := NewLLMSynthesizer(reportLLM)
	synthesizer.MaxTokens = cfg.ReportMaxTokens

	return NewEngine(ConfigFrom(cfg), finder, firecrawl, analyzer, synthesizer), nil
}
