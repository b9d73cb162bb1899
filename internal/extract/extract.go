// Package extract drives document text extraction: an embedded-text fast
// path when the source carries a usable text layer, otherwise parallel OCR
// over rasterized pages.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carelane/chartscan/internal/config"
	"github.com/carelane/chartscan/internal/model"
	"github.com/carelane/chartscan/internal/ocr"
	"github.com/carelane/chartscan/internal/pdf"
)

// PageMarker is the boundary line inserted between page texts. Downstream
// provenance and report export key off it.
func PageMarker(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// pageErrorMarker stands in for the text of a page that failed.
func pageErrorMarker(page int) string {
	return fmt.Sprintf("[page %d could not be processed]", page)
}

// pageRenderer is the rasterization surface of one open document. Satisfied
// by *pdf.Renderer; substituted in tests.
type pageRenderer interface {
	PageCount() int
	RenderPNG(page int, scale float64) ([]byte, error)
	Close() error
}

// Seams for tests: production wiring goes through internal/pdf.
var (
	openRenderer = func(path string) (pageRenderer, error) { return pdf.OpenRenderer(path) }
	readEmbedded = pdf.ExtractEmbedded
)

// Extractor produces an ExtractionResult for a document source.
type Extractor struct {
	ocrCfg  config.OCRConfig
	pdfCfg  config.PDFConfig
	factory ocr.EngineFactory
}

// New creates an Extractor. The engine factory is injected so tests can
// substitute a fake OCR engine.
func New(ocrCfg config.OCRConfig, pdfCfg config.PDFConfig, factory ocr.EngineFactory) *Extractor {
	if factory == nil {
		factory = func() (ocr.Engine, error) {
			return ocr.NewTesseractEngine(ocrCfg.Language, ocrCfg.MinWordConfidence)
		}
	}
	return &Extractor{ocrCfg: ocrCfg, pdfCfg: pdfCfg, factory: factory}
}

// Extract runs the extraction pipeline for the document at path.
//
// The embedded text layer is preferred whenever it clears the viability
// threshold: it is faster and more accurate than OCR. Otherwise every page
// is rasterized and recognized in pool-sized batches. A single failed page
// is recorded and replaced with an error marker; the call fails only when
// every page fails.
func (e *Extractor) Extract(ctx context.Context, path string, progress model.ProgressFunc) (*model.ExtractionResult, error) {
	if progress == nil {
		progress = model.NopProgress
	}
	log := zap.L().With(zap.String("source", path))

	progress(model.ProgressProcessing, 0.02, "extract", "reading embedded text layer")

	if result := e.tryEmbedded(path, log); result != nil {
		progress(model.ProgressProcessing, 0.95, "extract", "embedded text layer accepted")
		return result, nil
	}

	return e.extractOCR(ctx, path, progress, log)
}

// tryEmbedded attempts the fast path. Returns nil when the text layer is
// missing or below the viability threshold.
func (e *Extractor) tryEmbedded(path string, log *zap.Logger) *model.ExtractionResult {
	pages, err := readEmbedded(path, e.pdfCfg.RasterScale)
	if err != nil {
		log.Debug("extract: embedded text layer unavailable", zap.Error(err))
		return nil
	}

	total := 0
	for _, p := range pages {
		total += len(p.Text)
	}
	if total < e.pdfCfg.EmbeddedMinChars {
		log.Debug("extract: embedded text below viability threshold",
			zap.Int("chars", total),
			zap.Int("threshold", e.pdfCfg.EmbeddedMinChars),
		)
		return nil
	}

	var (
		text      strings.Builder
		positions []model.WordPosition
	)
	for i, p := range pages {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(PageMarker(p.Number))
		text.WriteString("\n")
		text.WriteString(p.Text)
		positions = append(positions, p.Words...)
	}

	log.Info("extract: embedded text layer accepted",
		zap.Int("pages", len(pages)),
		zap.Int("chars", total),
		zap.Int("positions", len(positions)),
	)

	return &model.ExtractionResult{
		Text:       text.String(),
		Method:     model.SourceEmbeddedText,
		Confidence: model.ConfidenceHigh,
		Positions:  positions,
		PageCount:  len(pages),
	}
}

// pageOutput collects one page's recognition outcome.
type pageOutput struct {
	text ocr.PageText
	err  error
}

// extractOCR rasterizes every page and recognizes them in pool-sized
// batches. The pool size is the hard bound on concurrent recognitions.
func (e *Extractor) extractOCR(ctx context.Context, path string, progress model.ProgressFunc, log *zap.Logger) (*model.ExtractionResult, error) {
	renderer, err := openRenderer(path)
	if err != nil {
		return nil, err
	}
	defer renderer.Close() //nolint:errcheck

	pageCount := renderer.PageCount()
	if pageCount == 0 {
		return nil, eris.New("extract: document has no pages")
	}

	poolSize := e.ocrCfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	if poolSize > pageCount {
		poolSize = pageCount
	}

	pool, err := ocr.NewPool(poolSize, e.factory)
	if err != nil {
		return nil, err
	}
	defer pool.Close() //nolint:errcheck

	progress(model.ProgressProcessing, 0.05, "ocr",
		fmt.Sprintf("recognizing %d pages with %d workers", pageCount, pool.Size()))

	outputs := make([]pageOutput, pageCount)
	batch := pool.Size()

	for start := 0; start < pageCount; start += batch {
		// Cooperative cancellation: checked only at batch boundaries so
		// in-flight recognitions always finish and handles stay clean.
		if cerr := ctx.Err(); cerr != nil {
			return nil, eris.Wrap(cerr, "extract: canceled")
		}

		end := start + batch
		if end > pageCount {
			end = pageCount
		}

		// Rasterize sequentially (the renderer is not concurrency-safe),
		// then fan out recognitions across pool handles.
		pngs := make([][]byte, end-start)
		for i := start; i < end; i++ {
			png, renderErr := renderer.RenderPNG(i, e.pdfCfg.RasterScale)
			if renderErr != nil {
				outputs[i].err = eris.Wrapf(model.ErrPageProcessing, "render page %d: %v", i+1, renderErr)
				continue
			}
			pngs[i-start] = png
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			if outputs[i].err != nil || pngs[i-start] == nil {
				continue
			}
			idx := i
			png := pngs[i-start]
			g.Go(func() error {
				engine, acqErr := pool.Acquire(gctx)
				if acqErr != nil {
					outputs[idx].err = acqErr
					return nil
				}
				defer pool.Release(engine)

				text, recErr := engine.Recognize(gctx, png)
				if recErr != nil {
					outputs[idx].err = eris.Wrapf(model.ErrPageProcessing, "recognize page %d: %v", idx+1, recErr)
					return nil
				}
				outputs[idx].text = text
				return nil
			})
		}
		_ = g.Wait()

		done := end
		progress(model.ProgressProcessing, 0.05+0.85*float64(done)/float64(pageCount), "ocr",
			fmt.Sprintf("recognized %d/%d pages", done, pageCount))
	}

	return assemble(outputs, progress, log)
}

// assemble stitches per-page outputs into one ExtractionResult in page
// order, regardless of recognition completion order.
func assemble(outputs []pageOutput, progress model.ProgressFunc, log *zap.Logger) (*model.ExtractionResult, error) {
	var (
		text      strings.Builder
		positions []model.WordPosition
		pageErrs  []model.PageError
		confSum   float64
		confPages int
	)

	for i, out := range outputs {
		page := i + 1
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(PageMarker(page))
		text.WriteString("\n")

		if out.err != nil {
			text.WriteString(pageErrorMarker(page))
			pageErrs = append(pageErrs, model.PageError{Page: page, Message: out.err.Error()})
			progress(model.ProgressWarning, 0, "ocr", fmt.Sprintf("page %d failed", page))
			continue
		}

		text.WriteString(out.text.Text)
		for j, w := range out.text.Words {
			positions = append(positions, model.WordPosition{
				Text:       w.Text,
				Page:       page,
				X:          w.X,
				Y:          w.Y,
				Width:      w.Width,
				Height:     w.Height,
				Confidence: w.Confidence,
				Source:     model.SourceOCR,
				Index:      j,
			})
		}
		if len(out.text.Words) > 0 {
			confSum += out.text.Confidence
			confPages++
		}
	}

	if len(pageErrs) == len(outputs) {
		return nil, eris.Wrapf(model.ErrPageProcessing, "all %d pages failed", len(outputs))
	}

	mean := 0.0
	if confPages > 0 {
		mean = confSum / float64(confPages)
	}

	result := &model.ExtractionResult{
		Text:       text.String(),
		Method:     model.SourceOCR,
		Confidence: confidenceLabel(mean),
		Positions:  positions,
		PageCount:  len(outputs),
		PageErrors: pageErrs,
	}

	log.Info("extract: ocr complete",
		zap.Int("pages", len(outputs)),
		zap.Int("failed_pages", len(pageErrs)),
		zap.Int("positions", len(positions)),
		zap.Float64("mean_confidence", mean),
	)

	return result, nil
}

func confidenceLabel(mean float64) model.ConfidenceLabel {
	switch {
	case mean >= 85:
		return model.ConfidenceHigh
	case mean >= 60:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
