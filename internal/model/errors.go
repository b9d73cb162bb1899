package model

import "github.com/rotisserie/eris"

// Pipeline error taxonomy. Callers classify with eris.Is so the UI can pick
// the right remediation (retry, re-upload, wait).
var (
	// ErrEngineInit means no OCR engine handle could be initialized. Fatal
	// for the document being processed.
	ErrEngineInit = eris.New("ocr engine initialization failed")

	// ErrPageProcessing wraps a single page failure. Non-fatal unless every
	// page fails.
	ErrPageProcessing = eris.New("page processing failed")

	// ErrModelCall means the LLM endpoint was unreachable or returned an
	// error status. Distinct from ErrFormat.
	ErrModelCall = eris.New("model call failed")

	// ErrFormat means the model answered but ignored the delimiter contract.
	ErrFormat = eris.New("model output did not match expected format")

	// ErrBusy means a document was submitted while another is mid-pipeline.
	ErrBusy = eris.New("processor busy with another document")

	// ErrNotFound means no document exists for the given id.
	ErrNotFound = eris.New("document not found")
)
