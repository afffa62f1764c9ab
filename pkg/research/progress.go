package research

import (
	"log/slog"
)

// Step labels a point in the research loop.
type Step string

const (
	StepInitialization Step = "initialization"
	StepSearching      Step = "searching"
	StepExtracting     Step = "extracting"
	StepAnalyzing      Step = "analyzing"
	StepSynthesizing   Step = "synthesizing"
	StepCompletion     Step = "completion"
	StepError          Step = "error"
)

// Progress is emitted after each notable step of a run. Depth is the
// zero-based iteration index.
type Progress struct {
	Step         Step   `json:"step"`
	Message      string `json:"message"`
	Depth        int    `json:"depth"`
	CurrentTopic string `json:"currentTopic,omitempty"`
	SourcesFound int    `json:"sourcesFound,omitempty"`
	// Stage names the step that failed on StepError events.
	Stage Step `json:"stage,omitempty"`
}

// ProgressReporter receives progress events synchronously. Implementations
// must return quickly.
type ProgressReporter interface {
	Report(p Progress)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(p Progress)

func (f ProgressFunc) Report(p Progress) { f(p) }

// MultiReporter fans a progress event out to several reporters.
type MultiReporter []ProgressReporter

func (m MultiReporter) Report(p Progress) {
	for _, r := range m {
		if r != nil {
			r.Report(p)
		}
	}
}

// LogReporter writes progress events to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (l LogReporter) Report(p Progress) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"step", string(p.Step), "depth", p.Depth}
	if p.CurrentTopic != "" {
		attrs = append(attrs, "topic", p.CurrentTopic)
	}
	if p.SourcesFound > 0 {
		attrs = append(attrs, "sources_found", p.SourcesFound)
	}
	if p.Step == StepError {
		attrs = append(attrs, "stage", string(p.Stage))
		logger.Warn(p.Message, attrs...)
		return
	}
	logger.Info(p.Message, attrs...)
}

// emit delivers p to r. A panicking reporter is logged and otherwise ignored.
func emit(r ProgressReporter, logger *slog.Logger, p Progress) {
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Progress reporter panicked", "step", string(p.Step), "panic", rec)
		}
	}()
	r.Report(p)
}
