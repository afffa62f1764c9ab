package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo text splitter
type TextSplitter struct {
	splitter  textsplitter.TextSplitter
	chunkSize int
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts, chunkSize: chunkSize}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}

// FirstChunk returns text unchanged when it fits in one chunk, otherwise the
// first chunk cut at a paragraph, line or word boundary. If the splitter
// cannot produce a chunk within the size limit the text is cut hard.
func (ts *TextSplitter) FirstChunk(text string) string {
	runes := []rune(text)
	if ts.chunkSize <= 0 || len(runes) <= ts.chunkSize {
		return text
	}

	chunks, err := ts.splitter.SplitText(text)
	if err == nil && len(chunks) > 0 {
		first := strings.TrimSpace(chunks[0])
		if first != "" && len([]rune(first)) <= ts.chunkSize {
			return first
		}
	}
	return string(runes[:ts.chunkSize])
}
