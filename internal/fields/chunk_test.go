package fields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_ShortTextSingleChunk(t *testing.T) {
	text := "short document"
	chunks := SplitChunks(text, 10000, 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitChunks_CountForLongText(t *testing.T) {
	// 25k chars with a 10k ceiling and 1k overlap: starts advance by 9k, so
	// three chunks cover the text.
	text := strings.Repeat("a", 25000)
	chunks := SplitChunks(text, 10000, 1000)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10000)
	assert.Len(t, chunks[1], 10000)
	assert.Len(t, chunks[2], 7000)
}

func TestSplitChunks_OverlapRetainsTail(t *testing.T) {
	text := strings.Repeat("x", 15000)
	chunks := SplitChunks(text, 10000, 1000)

	require.Len(t, chunks, 2)
	// The second chunk re-reads the last 1000 chars of the first.
	assert.Len(t, chunks[1], 6000)
}

func TestSplitChunks_PrefersParagraphBreak(t *testing.T) {
	// A paragraph break sits at position 8000, inside the back half of the
	// first 10k chunk, so the cut lands there instead of at the ceiling.
	text := strings.Repeat("a", 8000) + "\n\n" + strings.Repeat("b", 8000)
	chunks := SplitChunks(text, 10000, 1000)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Len(t, chunks[0], 8000)
	assert.NotContains(t, chunks[0], "b")
}

func TestSplitChunks_IgnoresEarlyParagraphBreak(t *testing.T) {
	// A break in the front half is not worth the lost coverage.
	text := strings.Repeat("a", 2000) + "\n\n" + strings.Repeat("b", 12000)
	chunks := SplitChunks(text, 10000, 1000)

	assert.Len(t, chunks[0], 10000)
}

func TestSplitChunks_FullCoverage(t *testing.T) {
	text := strings.Repeat("abcdefghij", 3000)
	chunks := SplitChunks(text, 7000, 500)

	// Every byte of the input appears in at least one chunk, in order.
	var rebuilt strings.Builder
	covered := 0
	for _, c := range chunks {
		if covered > 0 {
			// Skip the overlap already emitted.
			c = c[min(len(c), 500):]
		}
		rebuilt.WriteString(c)
		covered += len(c)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitChunks_DegenerateOverlap(t *testing.T) {
	// Overlap >= ceiling would loop forever; it is clamped instead.
	text := strings.Repeat("z", 5000)
	chunks := SplitChunks(text, 1000, 5000)

	assert.NotEmpty(t, chunks)
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, len(text))
}
