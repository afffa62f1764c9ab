package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-agent/pkg/research/tools"
	"github.com/mikeboe/research-agent/pkg/splitter"
)

// SourceFinder returns candidate pages for a query.
type SourceFinder interface {
	Search(ctx context.Context, query string) ([]tools.SearchResult, error)
}

// ContentExtractor pulls structured text from a batch of URLs.
type ContentExtractor interface {
	Extract(ctx context.Context, urls []string, instruction string) ([]tools.ExtractedPage, error)
}

// GapAnalyzer summarizes the findings and proposes follow-up gaps.
type GapAnalyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (*Analysis, error)
}

// ReportSynthesizer writes the final report.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, topic string, findings []Finding, summaries []string) (string, error)
}

// ResearchEngine drives search, extraction and analysis over a queue of
// research gaps and writes one report at the end. It holds no per-run state
// and may serve concurrent runs.
type ResearchEngine struct {
	Config      Config
	Finder      SourceFinder
	Extractor   ContentExtractor
	Analyzer    GapAnalyzer
	Synthesizer ReportSynthesizer
	Logger      *slog.Logger
	// OnStateUpdate, if set, receives a copy of the run state after
	// initialization, after every iteration and before synthesis.
	OnStateUpdate func(state ResearchState)

	splitter *splitter.TextSplitter
}

func NewEngine(cfg Config, finder SourceFinder, extractor ContentExtractor, analyzer GapAnalyzer, synthesizer ReportSynthesizer) *ResearchEngine {
	e := &ResearchEngine{
		Config:      cfg,
		Finder:      finder,
		Extractor:   extractor,
		Analyzer:    analyzer,
		Synthesizer: synthesizer,
		Logger:      slog.Default(),
	}
	if cfg.FindingMaxChars > 0 {
		e.splitter = splitter.NewRecursiveCharacterTextSplitter(cfg.FindingMaxChars, 0)
	}
	return e
}

// Run researches topic for at most maxDepth iterations (clamped to [1,5]).
// Failures of single searches, extractions or analyses are reported through
// progress and skipped. When ctx's deadline passes the loop stops and the
// report is written from the findings gathered so far. Only an empty topic,
// an explicitly cancelled context or a failed report synthesis end the run
// with an error.
func (e *ResearchEngine) Run(ctx context.Context, topic string, maxDepth int, progress ProgressReporter) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	maxDepth = ClampDepth(maxDepth)

	state := NewResearchState(topic)
	e.Logger.Info("Starting research loop", "topic", topic, "max_depth", maxDepth)
	e.emit(progress, Progress{Step: StepInitialization, Message: fmt.Sprintf("Starting research on %q", topic)})
	e.updateState(state)

	for depth := 0; depth < maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("research cancelled: %w", err)
			}
			e.emit(progress, Progress{Step: StepCompletion, Message: "Time budget exhausted, writing report from findings so far", Depth: depth})
			break
		}
		state.Depth = depth

		currentTopic, ok := state.PopGap()
		if !ok {
			e.emit(progress, Progress{Step: StepCompletion, Message: "No research gaps left to investigate", Depth: depth})
			break
		}

		done := e.iterate(ctx, state, currentTopic, depth, maxDepth, progress)
		e.updateState(state)
		if done {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("research cancelled: %w", err)
		}
		e.Logger.Warn("Research deadline reached", "depth", state.Depth, "findings", len(state.Findings))
	}

	e.emit(progress, Progress{
		Step:    StepSynthesizing,
		Message: fmt.Sprintf("Writing report from %d findings", len(state.Findings)),
		Depth:   state.Depth,
	})
	e.updateState(state)

	synthCtx, cancel := e.synthesisContext(ctx)
	defer cancel()
	report, err := e.Synthesizer.Synthesize(synthCtx, topic, state.Findings, state.Summaries)
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	e.Logger.Info("Final report generated", "length", len(report), "findings", len(state.Findings))
	return &Result{
		Report:        report,
		Sources:       state.Sources,
		Summaries:     state.Summaries,
		TotalFindings: len(state.Findings),
	}, nil
}

// iterate runs one search, extract, analyze cycle for currentTopic. It
// reports whether the loop should stop.
func (e *ResearchEngine) iterate(ctx context.Context, state *ResearchState, currentTopic string, depth, maxDepth int, progress ProgressReporter) bool {
	e.emit(progress, Progress{
		Step:         StepSearching,
		Message:      fmt.Sprintf("Searching depth %d/%d: %s", depth+1, maxDepth, currentTopic),
		Depth:        depth,
		CurrentTopic: currentTopic,
	})

	results, err := e.search(ctx, currentTopic)
	if err != nil {
		e.emitError(progress, StepSearching, depth, currentTopic, fmt.Sprintf("Search failed: %v", err))
		return false
	}
	if len(results) == 0 {
		e.emitError(progress, StepSearching, depth, currentTopic, fmt.Sprintf("No sources found for %q", currentTopic))
		return false
	}

	state.Sources = append(state.Sources, results...)
	e.emit(progress, Progress{
		Step:         StepExtracting,
		Message:      fmt.Sprintf("Found %d sources, extracting content", len(results)),
		Depth:        depth,
		CurrentTopic: currentTopic,
		SourcesFound: len(results),
	})

	e.extractPhase(ctx, state, currentTopic, depth, results, progress)

	e.emit(progress, Progress{
		Step:         StepAnalyzing,
		Message:      fmt.Sprintf("Analyzing %d findings", len(state.Findings)),
		Depth:        depth,
		CurrentTopic: currentTopic,
	})

	analysis, err := e.analyze(ctx, state, currentTopic, depth, maxDepth)
	if err != nil {
		e.emitError(progress, StepAnalyzing, depth, currentTopic, fmt.Sprintf("Analysis failed: %v", err))
		return false
	}

	state.Summaries = append(state.Summaries, analysis.Summary)
	added := 0
	for _, gap := range analysis.Gaps {
		if state.EnqueueGap(gap) {
			added++
		}
	}
	e.Logger.Info("Analysis complete", "depth", depth, "new_gaps", added, "queued", len(state.Gaps), "continue", analysis.ShouldContinue)

	if !analysis.ShouldContinue || depth == maxDepth-1 {
		msg := "Research complete"
		if !analysis.ShouldContinue {
			msg = "Research complete: analysis found the topic sufficiently covered"
		}
		e.emit(progress, Progress{Step: StepCompletion, Message: msg, Depth: depth, CurrentTopic: currentTopic})
		return true
	}
	return false
}

func (e *ResearchEngine) search(ctx context.Context, query string) ([]tools.SearchResult, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	return e.Finder.Search(callCtx, query)
}

// extractPhase turns the top search results into findings. When extraction
// fails the raw search content of the first results is used instead.
func (e *ResearchEngine) extractPhase(ctx context.Context, state *ResearchState, currentTopic string, depth int, results []tools.SearchResult, progress ProgressReporter) {
	top := results
	if limit := e.Config.ExtractLimit; limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	urls := make([]string, 0, len(top))
	for _, r := range top {
		urls = append(urls, r.URL)
	}

	callCtx, cancel := e.callContext(ctx)
	pages, err := e.Extractor.Extract(callCtx, urls, ExtractionInstruction(currentTopic))
	cancel()

	if err != nil {
		e.emitError(progress, StepExtracting, depth, currentTopic, fmt.Sprintf("Extraction failed, using search snippets: %v", err))

		fallback := results
		if limit := e.Config.FallbackLimit; limit > 0 && len(fallback) > limit {
			fallback = fallback[:limit]
		}
		for _, r := range fallback {
			text := r.Content
			if strings.TrimSpace(text) == "" {
				text = r.Description
			}
			e.addFinding(state, text, r.URL)
		}
		return
	}

	for _, p := range pages {
		e.addFinding(state, p.Content, p.URL)
	}
}

func (e *ResearchEngine) addFinding(state *ResearchState, text, source string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	state.Findings = append(state.Findings, Finding{Text: e.capText(text), Source: source})
}

func (e *ResearchEngine) capText(text string) string {
	if e.splitter == nil {
		return text
	}
	return e.splitter.FirstChunk(text)
}

func (e *ResearchEngine) analyze(ctx context.Context, state *ResearchState, currentTopic string, depth, maxDepth int) (*Analysis, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	analysis, err := e.Analyzer.Analyze(callCtx, AnalysisInput{
		OriginalTopic: state.Topic,
		CurrentTopic:  currentTopic,
		Findings:      state.Findings,
		Summaries:     state.Summaries,
		Depth:         depth,
		MaxDepth:      maxDepth,
	})
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: no analysis returned", ErrMalformedAnalysis)
	}
	return analysis, nil
}

// ExtractionInstruction is the prompt sent to the content extractor.
func ExtractionInstruction(topic string) string {
	return fmt.Sprintf("Extract the key facts, statistics, and expert opinions about %q from this page. Be concise and factual; omit navigation, ads and unrelated content.", topic)
}

func (e *ResearchEngine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Config.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.Config.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// synthesisContext outlives ctx's deadline, bounded by CallTimeout, so a run
// that ran out of time still gets its report. Cancellation of ctx still stops
// it.
func (e *ResearchEngine) synthesisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cancelBase()
		}
	})
	callCtx, cancel := e.callContext(base)
	return callCtx, func() {
		cancel()
		stop()
		cancelBase()
	}
}

func (e *ResearchEngine) emit(progress ProgressReporter, p Progress) {
	emit(progress, e.Logger, p)
}

func (e *ResearchEngine) emitError(progress ProgressReporter, stage Step, depth int, topic, msg string) {
	e.Logger.Warn("Research step failed", "stage", string(stage), "depth", depth, "topic", topic, "error", msg)
	e.emit(progress, Progress{Step: StepError, Message: msg, Depth: depth, CurrentTopic: topic, Stage: stage})
}

func (e *ResearchEngine) updateState(state *ResearchState) {
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(state.Snapshot())
	}
}
