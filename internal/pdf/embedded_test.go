package pdf

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/chartscan/internal/model"
)

// glyphs builds one pdf.Text per rune, advancing X by width per glyph.
func glyphs(s string, x, y, fontSize, glyphW float64) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	for _, r := range s {
		out = append(out, pdf.Text{
			S:        string(r),
			X:        x,
			Y:        y,
			W:        glyphW,
			FontSize: fontSize,
		})
		x += glyphW
	}
	return out
}

func TestGroupWords_WhitespaceBreaksWords(t *testing.T) {
	texts := glyphs("Jane", 10, 700, 10, 5)
	texts = append(texts, pdf.Text{S: " ", X: 30, Y: 700, W: 5, FontSize: 10})
	texts = append(texts, glyphs("Doe", 35, 700, 10, 5)...)

	words := groupWords(texts, 1, 792, 1.0)

	require.Len(t, words, 2)
	assert.Equal(t, "Jane", words[0].Text)
	assert.Equal(t, "Doe", words[1].Text)
	assert.Equal(t, 1, words[0].Page)
	assert.Equal(t, model.SourceEmbeddedText, words[0].Source)
	assert.Equal(t, 100.0, words[0].Confidence)
}

func TestGroupWords_BaselineChangeBreaksWords(t *testing.T) {
	texts := glyphs("top", 10, 700, 10, 5)
	texts = append(texts, glyphs("next", 10, 680, 10, 5)...)

	words := groupWords(texts, 1, 792, 1.0)

	require.Len(t, words, 2)
	assert.Equal(t, "top", words[0].Text)
	assert.Equal(t, "next", words[1].Text)
}

func TestGroupWords_WideGapBreaksWords(t *testing.T) {
	// Second run starts far past the end of the first: treated as a new word
	// even without explicit whitespace glyphs.
	texts := glyphs("left", 10, 700, 10, 5)
	texts = append(texts, glyphs("right", 100, 700, 10, 5)...)

	words := groupWords(texts, 1, 792, 1.0)

	require.Len(t, words, 2)
	assert.Equal(t, "left", words[0].Text)
	assert.Equal(t, "right", words[1].Text)
}

func TestGroupWords_CoordinatesFlippedAndScaled(t *testing.T) {
	// One word at PDF baseline y=700 with 10pt glyphs on a 792pt page.
	texts := glyphs("word", 10, 700, 10, 5)

	words := groupWords(texts, 1, 792, 2.0)

	require.Len(t, words, 1)
	w := words[0]
	// X and width scale directly.
	assert.InDelta(t, 20.0, w.X, 0.001)
	assert.InDelta(t, 40.0, w.Width, 0.001) // 4 glyphs * 5pt * scale
	// Y flips to a top-left origin: (pageHeight - baseline - fontSize) * scale.
	assert.InDelta(t, (792.0-700.0-10.0)*2.0, w.Y, 0.001)
	assert.InDelta(t, 20.0, w.Height, 0.001)
}

func TestGroupWords_EmptyInput(t *testing.T) {
	assert.Empty(t, groupWords(nil, 1, 792, 1.0))
}

func TestWordsToText_ReadingOrder(t *testing.T) {
	// Words supplied out of order: second line first, then first line
	// right-to-left.
	words := []model.WordPosition{
		{Text: "line2", X: 10, Y: 120, Height: 12},
		{Text: "world", X: 60, Y: 100, Height: 12},
		{Text: "hello", X: 10, Y: 100, Height: 12},
	}

	assert.Equal(t, "hello world\nline2", wordsToText(words))
}

func TestWordsToText_SameLineTolerance(t *testing.T) {
	// A few pixels of baseline wobble stays on one line.
	words := []model.WordPosition{
		{Text: "a", X: 10, Y: 100, Height: 12},
		{Text: "b", X: 30, Y: 103, Height: 12},
	}

	assert.Equal(t, "a b", wordsToText(words))
}

func TestWordsToText_Empty(t *testing.T) {
	assert.Equal(t, "", wordsToText(nil))
}
