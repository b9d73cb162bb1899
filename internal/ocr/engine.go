// Package ocr provides a bounded pool of OCR engine handles with word-level
// geometry output.
package ocr

import "context"

// Word is one recognized token with its bounding box in image pixel space
// (origin top-left) and a 0-100 recognition confidence.
type Word struct {
	Text       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
}

// PageText is the recognition output for one page image.
type PageText struct {
	Text       string
	Words      []Word
	Confidence float64 // mean word confidence, 0-100
}

// Engine is one OCR handle. A handle supports one recognition in flight at a
// time; concurrency comes from pooling handles, never from sharing one.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (PageText, error)
	Close() error
}

// EngineFactory constructs a fresh engine handle.
type EngineFactory func() (Engine, error)
