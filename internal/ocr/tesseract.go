package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// tesseractEngine implements Engine over a long-lived gosseract client.
type tesseractEngine struct {
	client  *gosseract.Client
	minConf float64
}

// NewTesseractEngine initializes a Tesseract handle for the given language.
// minConf is the word confidence floor (0-100); words below it are dropped
// because stamps, faint scans, and handwriting fragments would otherwise
// pollute position matching.
func NewTesseractEngine(language string, minConf float64) (Engine, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "ocr: set language %q", language)
	}
	return &tesseractEngine{client: client, minConf: minConf}, nil
}

func (e *tesseractEngine) Recognize(ctx context.Context, png []byte) (PageText, error) {
	if err := ctx.Err(); err != nil {
		return PageText{}, err
	}

	if err := e.client.SetImageFromBytes(png); err != nil {
		return PageText{}, eris.Wrap(err, "ocr: set image")
	}

	text, err := e.client.Text()
	if err != nil {
		return PageText{}, eris.Wrap(err, "ocr: recognize text")
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return PageText{}, eris.Wrap(err, "ocr: word bounding boxes")
	}

	words := make([]Word, 0, len(boxes))
	var confSum float64
	for _, b := range boxes {
		token := strings.TrimSpace(b.Word)
		if token == "" || b.Confidence < e.minConf {
			continue
		}
		confSum += b.Confidence
		words = append(words, Word{
			Text:       token,
			X:          float64(b.Box.Min.X),
			Y:          float64(b.Box.Min.Y),
			Width:      float64(b.Box.Dx()),
			Height:     float64(b.Box.Dy()),
			Confidence: b.Confidence,
		})
	}

	result := PageText{Text: strings.TrimSpace(text), Words: words}
	if len(words) > 0 {
		result.Confidence = confSum / float64(len(words))
	}
	return result, nil
}

func (e *tesseractEngine) Close() error {
	if err := e.client.Close(); err != nil {
		return eris.Wrap(err, "ocr: close tesseract client")
	}
	return nil
}
