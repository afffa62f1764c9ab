package research

import (
	"errors"
	"strings"
	"time"

	"github.com/mikeboe/research-agent/pkg/research/tools"
)

const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
)

var (
	// ErrEmptyTopic is returned by Run when no topic is given.
	ErrEmptyTopic = errors.New("topic is required")
)

// Config holds runtime configuration
type Config struct {
	// ExtractLimit is how many top search results are sent to the extractor.
	ExtractLimit int
	// FallbackLimit is how many search results become findings when
	// extraction fails.
	FallbackLimit int
	// FindingMaxChars caps the text kept per finding. Zero keeps everything.
	FindingMaxChars int
	// CallTimeout bounds every single provider call. Zero means no bound
	// beyond the caller's context.
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExtractLimit:    5,
		FallbackLimit:   3,
		FindingMaxChars: 4000,
		CallTimeout:     90 * time.Second,
	}
}

// Finding is one piece of extracted content attributed to a source URL.
type Finding struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ResearchState tracks the progress of one research run. It is created by
// Run and never shared between runs.
type ResearchState struct {
	Topic     string               `json:"topic"`
	Depth     int                  `json:"depth"`
	Findings  []Finding            `json:"findings"`
	Summaries []string             `json:"summaries"`
	Gaps      []string             `json:"gaps"`
	Sources   []tools.SearchResult `json:"sources"`
}

func NewResearchState(topic string) *ResearchState {
	return &ResearchState{
		Topic:     topic,
		Findings:  []Finding{},
		Summaries: []string{},
		Gaps:      []string{topic},
		Sources:   []tools.SearchResult{},
	}
}

// PopGap removes and returns the gap at the front of the queue.
func (s *ResearchState) PopGap() (string, bool) {
	if len(s.Gaps) == 0 {
		return "", false
	}
	gap := s.Gaps[0]
	s.Gaps = s.Gaps[1:]
	return gap, true
}

// EnqueueGap appends gap to the back of the queue unless it is blank or
// already queued verbatim. Gaps that were already processed may be queued
// again.
func (s *ResearchState) EnqueueGap(gap string) bool {
	gap = strings.TrimSpace(gap)
	if gap == "" {
		return false
	}
	for _, queued := range s.Gaps {
		if queued == gap {
			return false
		}
	}
	s.Gaps = append(s.Gaps, gap)
	return true
}

// Snapshot returns a deep copy that is safe to hand to other goroutines.
func (s *ResearchState) Snapshot() ResearchState {
	return ResearchState{
		Topic:     s.Topic,
		Depth:     s.Depth,
		Findings:  append([]Finding(nil), s.Findings...),
		Summaries: append([]string(nil), s.Summaries...),
		Gaps:      append([]string(nil), s.Gaps...),
		Sources:   append([]tools.SearchResult(nil), s.Sources...),
	}
}

// Result is the outcome of a research run.
type Result struct {
	Report        string               `json:"report"`
	Sources       []tools.SearchResult `json:"sources"`
	Summaries     []string             `json:"summaries"`
	TotalFindings int                  `json:"totalFindings"`
}

// Analysis is the gap analyzer's verdict on the findings so far.
type Analysis struct {
	Summary        string   `json:"summary"`
	Gaps           []string `json:"gaps"`
	ShouldContinue bool     `json:"shouldContinue"`
}

// ClampDepth bounds depth to [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	if depth < MinDepth {
		return MinDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}
