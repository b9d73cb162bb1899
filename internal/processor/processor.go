// Package processor sequences the document pipeline: extract → structure →
// reconcile-ready → cached, and owns the in-memory document cache.
package processor

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carelane/chartscan/internal/model"
)

// TextExtractor produces document text plus word positions from a source.
type TextExtractor interface {
	Extract(ctx context.Context, path string, progress model.ProgressFunc) (*model.ExtractionResult, error)
}

// FieldExtractor produces a FieldRecord from document text.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (*model.FieldRecord, error)
}

// PositionFinder maps a field value to source match blocks.
type PositionFinder interface {
	FindPositions(positions []model.WordPosition, value string) []model.MatchBlock
}

// Processor runs the full document pipeline and caches results for the
// process lifetime. OCR and LLM calls are resource-intensive, so only one
// document may be mid-pipeline at a time; a second submission fails fast
// with ErrBusy instead of queuing silently.
type Processor struct {
	extractor  TextExtractor
	fields     FieldExtractor
	reconciler PositionFinder

	busy sync.Mutex // single processing slot

	mu   sync.RWMutex // guards docs
	docs map[string]*model.Document
}

// New creates a Processor with its collaborators injected.
func New(extractor TextExtractor, fieldExtractor FieldExtractor, reconciler PositionFinder) *Processor {
	return &Processor{
		extractor:  extractor,
		fields:     fieldExtractor,
		reconciler: reconciler,
		docs:       make(map[string]*model.Document),
	}
}

// ProcessOption adjusts a document before processing starts.
type ProcessOption func(*model.Document)

// WithTempSource marks the source file as a temp artifact owned by the
// processor, removed on Delete.
func WithTempSource() ProcessOption {
	return func(d *model.Document) { d.TempSource = true }
}

// Process runs the full pipeline for the document at path and caches the
// result. Progress milestones are reported through the callback.
func (p *Processor) Process(ctx context.Context, path, name string, progress model.ProgressFunc, opts ...ProcessOption) (*model.Document, error) {
	if !p.busy.TryLock() {
		return nil, eris.Wrap(model.ErrBusy, "processor")
	}
	defer p.busy.Unlock()

	if progress == nil {
		progress = model.NopProgress
	}

	doc := &model.Document{
		ID:         uuid.NewString(),
		Name:       name,
		SourcePath: path,
		IngestedAt: time.Now().UTC(),
		State:      model.StatePending,
	}
	for _, opt := range opts {
		opt(doc)
	}

	log := zap.L().With(zap.String("document_id", doc.ID), zap.String("name", name))
	log.Info("processor: pipeline start")

	p.put(doc)

	// Stage 1: text extraction.
	p.setState(doc, model.StateExtracting)
	progress(model.ProgressProcessing, 0.0, "extract", "starting text extraction")

	result, err := p.extractor.Extract(ctx, path, progress)
	if err != nil {
		p.fail(doc, progress, "extract", err)
		return doc, err
	}
	p.mu.Lock()
	doc.Extraction = result
	doc.PageCount = result.PageCount
	p.mu.Unlock()
	if len(result.PageErrors) > 0 {
		progress(model.ProgressWarning, 0.5, "extract",
			"some pages could not be processed")
	}

	// Stage 2: structured field extraction.
	p.setState(doc, model.StateStructuring)
	progress(model.ProgressProcessing, 0.6, "structure", "extracting clinical fields")

	record, err := p.fields.Extract(ctx, result.Text)
	p.mu.Lock()
	doc.Fields = record
	p.mu.Unlock()
	if err != nil {
		p.fail(doc, progress, "structure", err)
		return doc, err
	}
	progress(model.ProgressProcessing, 0.9, "structure", "clinical fields extracted")

	// Stage 3: reconciliation is lazy; the document is ready for
	// FieldReference as soon as fields and positions exist.
	p.setState(doc, model.StateReady)
	progress(model.ProgressProcessing, 0.95, "reconcile", "source reconciliation ready")

	p.setState(doc, model.StateCached)
	progress(model.ProgressComplete, 1.0, "complete", "document processed")

	log.Info("processor: pipeline complete",
		zap.String("method", string(result.Method)),
		zap.Int("pages", doc.PageCount),
		zap.Int("fields_populated", record.Populated()),
	)

	return doc, nil
}

// Get returns a document by id. The returned value is a snapshot: callers
// polling a mid-pipeline document see consistent state, and in-flight
// pipeline updates land only in the cached copy. Extraction and Fields are
// shared pointers but immutable once attached.
func (p *Processor) Get(id string) (*model.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrNotFound, "id %s", id)
	}
	snap := *doc
	return &snap, nil
}

// List returns snapshots of all documents ordered by ingestion time.
func (p *Processor) List() []*model.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*model.Document, 0, len(p.docs))
	for _, d := range p.docs {
		snap := *d
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IngestedAt.Before(out[j].IngestedAt)
	})
	return out
}

// Delete removes a document from the cache and releases any temp artifacts
// tied to its source.
func (p *Processor) Delete(id string) error {
	p.mu.Lock()
	doc, ok := p.docs[id]
	if ok {
		delete(p.docs, id)
	}
	p.mu.Unlock()

	if !ok {
		return eris.Wrapf(model.ErrNotFound, "id %s", id)
	}

	if doc.TempSource && doc.SourcePath != "" {
		if err := os.Remove(doc.SourcePath); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("processor: temp source cleanup failed",
				zap.String("document_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

// FieldReference lazily reconciles a field value back to its source
// positions. Returns nil (no reference) when the field is empty; references
// are cheap relative to OCR and are never cached.
func (p *Processor) FieldReference(id string, key model.FieldKey) (*model.Reference, error) {
	doc, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	if !model.IsValidFieldKey(key) {
		return nil, eris.Errorf("processor: unknown field %q", key)
	}
	if doc.Fields == nil || doc.Extraction == nil {
		return nil, nil
	}

	value := doc.Fields.Get(key)
	if value == "" {
		return nil, nil
	}

	return &model.Reference{
		Field:  key,
		Value:  value,
		Blocks: p.reconciler.FindPositions(doc.Extraction.Positions, value),
	}, nil
}

func (p *Processor) put(doc *model.Document) {
	p.mu.Lock()
	p.docs[doc.ID] = doc
	p.mu.Unlock()
}

func (p *Processor) setState(doc *model.Document, state model.DocumentState) {
	p.mu.Lock()
	doc.State = state
	p.mu.Unlock()
}

func (p *Processor) fail(doc *model.Document, progress model.ProgressFunc, step string, err error) {
	p.setState(doc, model.StateFailed)
	progress(model.ProgressError, 1.0, step, err.Error())
	zap.L().Error("processor: pipeline failed",
		zap.String("document_id", doc.ID),
		zap.String("step", step),
		zap.Error(err),
	)
}
