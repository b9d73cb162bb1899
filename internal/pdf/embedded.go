package pdf

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/carelane/chartscan/internal/model"
)

// EmbeddedPage is one page of the embedded text layer with word positions
// already converted to the raster pixel space used by the OCR path.
type EmbeddedPage struct {
	Number int // 1-based
	Text   string
	Words  []model.WordPosition
}

// defaultPageHeight is US Letter in PDF points, used when a page carries no
// resolvable MediaBox.
const defaultPageHeight = 792.0

// ExtractEmbedded reads the embedded text layer with glyph positions.
// Coordinates are flipped to a top-left origin and multiplied by scale so
// embedded and OCR positions share one pixel space. Malformed content
// streams surface as an error, never a panic.
func ExtractEmbedded(path string, scale float64) (pages []EmbeddedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pdf: embedded text layer unreadable: %v", r)
		}
	}()

	if scale <= 0 {
		scale = 2.0
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	total := reader.NumPage()
	pages = make([]EmbeddedPage, 0, total)
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			pages = append(pages, EmbeddedPage{Number: n})
			continue
		}

		height := pageHeight(page)
		words := groupWords(page.Content().Text, n, height, scale)
		pages = append(pages, EmbeddedPage{
			Number: n,
			Text:   wordsToText(words),
			Words:  words,
		})
	}

	return pages, nil
}

// pageHeight resolves the page MediaBox height in points.
func pageHeight(page pdf.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return defaultPageHeight
	}
	top := box.Index(3).Float64()
	bottom := box.Index(1).Float64()
	if top <= bottom {
		return defaultPageHeight
	}
	return top - bottom
}

// groupWords assembles glyph runs into words. A word breaks on whitespace
// runs, on a baseline change, or on a horizontal gap wider than half the
// glyph's font size.
func groupWords(texts []pdf.Text, pageNum int, pageHeight, scale float64) []model.WordPosition {
	var words []model.WordPosition

	var (
		builder  strings.Builder
		minX     float64
		endX     float64
		baseline float64
		size     float64
	)

	flush := func() {
		token := strings.TrimSpace(builder.String())
		if token != "" {
			h := size
			if h <= 0 {
				h = 10
			}
			words = append(words, model.WordPosition{
				Text:       token,
				Page:       pageNum,
				X:          minX * scale,
				Y:          (pageHeight - baseline - h) * scale,
				Width:      (endX - minX) * scale,
				Height:     h * scale,
				Confidence: 100,
				Source:     model.SourceEmbeddedText,
				Index:      len(words),
			})
		}
		builder.Reset()
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		if builder.Len() > 0 {
			gap := t.X - endX
			if math.Abs(t.Y-baseline) > 2 || gap > t.FontSize/2 || gap < -t.FontSize {
				flush()
			}
		}
		if builder.Len() == 0 {
			minX = t.X
			baseline = t.Y
			size = t.FontSize
		}
		builder.WriteString(t.S)
		endX = t.X + t.W
		if t.FontSize > size {
			size = t.FontSize
		}
	}
	flush()

	return words
}

// wordsToText rebuilds page text in reading order: top-to-bottom, then
// left-to-right within a line-height tolerance.
func wordsToText(words []model.WordPosition) string {
	if len(words) == 0 {
		return ""
	}

	ordered := make([]model.WordPosition, len(words))
	copy(ordered, words)
	sort.SliceStable(ordered, func(i, j int) bool {
		if math.Abs(ordered[i].Y-ordered[j].Y) > ordered[i].Height/2 {
			return ordered[i].Y < ordered[j].Y
		}
		return ordered[i].X < ordered[j].X
	})

	var b strings.Builder
	lineY := ordered[0].Y
	for i, w := range ordered {
		if i > 0 {
			if math.Abs(w.Y-lineY) > w.Height/2 {
				b.WriteString("\n")
				lineY = w.Y
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(w.Text)
	}
	return b.String()
}
