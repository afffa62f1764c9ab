package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFirstChunk(t *testing.T) {
	ts := NewRecursiveCharacterTextSplitter(40, 0)

	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "fits easily", ts.FirstChunk("fits easily"))
	})

	t.Run("cuts on paragraph", func(t *testing.T) {
		text := "First paragraph is short.\n\n" + strings.Repeat("second paragraph words ", 5)
		assert.Equal(t, "First paragraph is short.", ts.FirstChunk(text))
	})

	t.Run("never exceeds limit", func(t *testing.T) {
		text := strings.Repeat("ü", 200)
		got := ts.FirstChunk(text)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), 40)
		assert.NotEmpty(t, got)
	})
}

func TestFirstChunkDisabled(t *testing.T) {
	ts := NewRecursiveCharacterTextSplitter(0, 0)
	text := strings.Repeat("x", 10000)
	assert.Equal(t, text, ts.FirstChunk(text))
}
