package model

import "time"

// PositionSource tags where a WordPosition came from.
type PositionSource string

const (
	SourceEmbeddedText PositionSource = "embedded-text"
	SourceOCR          PositionSource = "ocr"
)

// WordPosition is one recognized token with its bounding box in page pixel
// space at the rasterization scale used during extraction.
type WordPosition struct {
	Text       string         `json:"text"`
	Page       int            `json:"page"` // 1-based
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	Confidence float64        `json:"confidence"` // 0-100
	Source     PositionSource `json:"source"`
	Index      int            `json:"index"` // stable per-page index
}

// ConfidenceLabel buckets extraction quality for display.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// PageError records a single page that failed during extraction.
type PageError struct {
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// ExtractionResult is the document-level text extraction output. It is
// immutable once produced.
type ExtractionResult struct {
	Text       string          `json:"text"`
	Method     PositionSource  `json:"method"`
	Confidence ConfidenceLabel `json:"confidence"`
	Positions  []WordPosition  `json:"positions"`
	PageCount  int             `json:"page_count"`
	PageErrors []PageError     `json:"page_errors,omitempty"`
}

// DocumentState tracks a document through the processing pipeline.
type DocumentState string

const (
	StatePending     DocumentState = "pending"
	StateExtracting  DocumentState = "extracting"
	StateStructuring DocumentState = "structuring"
	StateReady       DocumentState = "ready"
	StateCached      DocumentState = "cached"
	StateFailed      DocumentState = "failed"
)

// Document is one processed chart. The processor owns the
// Document → ExtractionResult → FieldRecord chain; positions are read-only
// for the reconciler.
type Document struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	SourcePath string            `json:"source_path"`
	IngestedAt time.Time         `json:"ingested_at"`
	PageCount  int               `json:"page_count"`
	State      DocumentState     `json:"state"`
	Extraction *ExtractionResult `json:"extraction,omitempty"`
	Fields     *FieldRecord      `json:"fields,omitempty"`

	// TempSource marks SourcePath as a process-owned temp artifact that
	// Delete must remove.
	TempSource bool `json:"-"`
}

// MatchStrategy names which reconciliation strategy produced a MatchBlock.
type MatchStrategy string

const (
	StrategyPhrase          MatchStrategy = "phrase"
	StrategySequence        MatchStrategy = "sequence"
	StrategySignificantWord MatchStrategy = "significant-word"
)

// MatchBlock is one candidate source location for a field value: a bounding
// box plus the surrounding text window that justified the match.
type MatchBlock struct {
	Page       int           `json:"page"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Context    string        `json:"context"`
	Strategy   MatchStrategy `json:"strategy"`
	Confidence float64       `json:"confidence"`
}

// Reference ties a field value back to its source locations. Computed on
// demand, never cached.
type Reference struct {
	Field  FieldKey     `json:"field"`
	Value  string       `json:"value"`
	Blocks []MatchBlock `json:"blocks"`
}

// ProgressStatus classifies a progress callback event.
type ProgressStatus string

const (
	ProgressProcessing ProgressStatus = "processing"
	ProgressWarning    ProgressStatus = "warning"
	ProgressError      ProgressStatus = "error"
	ProgressComplete   ProgressStatus = "complete"
)

// ProgressFunc receives pipeline milestones. Fraction is 0-1. Implementations
// must be fast; they are called from the processing goroutine.
type ProgressFunc func(status ProgressStatus, fraction float64, step, message string)

// NopProgress discards progress events.
func NopProgress(ProgressStatus, float64, string, string) {}
