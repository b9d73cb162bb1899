// Package pdf wraps page rasterization and the embedded text layer of a
// source document.
package pdf

import (
	"bytes"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rotisserie/eris"
)

// Renderer rasterizes pages of one open document. Not safe for concurrent
// use; the extraction orchestrator renders pages sequentially and fans out
// only the recognition work.
type Renderer struct {
	doc *fitz.Document
}

// OpenRenderer opens the document at path.
func OpenRenderer(path string) (*Renderer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: open %s", path)
	}
	return &Renderer{doc: doc}, nil
}

// PageCount returns the number of pages.
func (r *Renderer) PageCount() int {
	return r.doc.NumPage()
}

// RenderPNG rasterizes the zero-based page at the given scale (1.0 = 72 DPI)
// and returns it PNG-encoded for the OCR engine.
func (r *Renderer) RenderPNG(page int, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 2.0
	}
	img, err := r.doc.ImageDPI(page, 72*scale)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: render page %d", page+1)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrapf(err, "pdf: encode page %d", page+1)
	}
	return buf.Bytes(), nil
}

// Close releases the underlying document.
func (r *Renderer) Close() error {
	if err := r.doc.Close(); err != nil {
		return eris.Wrap(err, "pdf: close document")
	}
	return nil
}
