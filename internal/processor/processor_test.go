package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/chartscan/internal/model"
)

type fakeTextExtractor struct {
	result  *model.ExtractionResult
	err     error
	started chan struct{} // closed when Extract begins, if set
	release chan struct{} // Extract blocks until closed, if set
}

func (f *fakeTextExtractor) Extract(_ context.Context, _ string, _ model.ProgressFunc) (*model.ExtractionResult, error) {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

type fakeFieldExtractor struct {
	record *model.FieldRecord
	err    error
}

func (f *fakeFieldExtractor) Extract(context.Context, string) (*model.FieldRecord, error) {
	return f.record, f.err
}

type fakeFinder struct {
	calls  int
	blocks []model.MatchBlock
}

func (f *fakeFinder) FindPositions([]model.WordPosition, string) []model.MatchBlock {
	f.calls++
	return f.blocks
}

func okExtraction() *model.ExtractionResult {
	return &model.ExtractionResult{
		Text:      "--- Page 1 ---\nPatient: Jane Doe",
		Method:    model.SourceOCR,
		PageCount: 1,
		Positions: []model.WordPosition{
			{Text: "Jane", Page: 1, X: 10, Y: 100, Width: 40, Height: 10},
			{Text: "Doe", Page: 1, X: 60, Y: 100, Width: 40, Height: 10},
		},
	}
}

func okRecord() *model.FieldRecord {
	record := model.NewFieldRecord()
	record.Set(model.FieldPatientName, "Jane Doe")
	record.Method = model.MethodStructured
	return record
}

func newTestProcessor(ext *fakeTextExtractor, fx *fakeFieldExtractor, finder *fakeFinder) *Processor {
	if ext == nil {
		ext = &fakeTextExtractor{result: okExtraction()}
	}
	if fx == nil {
		fx = &fakeFieldExtractor{record: okRecord()}
	}
	if finder == nil {
		finder = &fakeFinder{}
	}
	return New(ext, fx, finder)
}

func TestProcess_HappyPath(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	var statuses []model.ProgressStatus
	doc, err := p.Process(context.Background(), "/tmp/chart.pdf", "chart", func(status model.ProgressStatus, _ float64, _, _ string) {
		statuses = append(statuses, status)
	})

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "chart", doc.Name)
	assert.Equal(t, model.StateCached, doc.State)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, "Jane Doe", doc.Fields.Get(model.FieldPatientName))
	assert.Equal(t, model.ProgressComplete, statuses[len(statuses)-1])

	// The document is cached and retrievable afterward; reads hand out
	// snapshots, never the live cached pointer.
	got, err := p.Get(doc.ID)
	require.NoError(t, err)
	assert.NotSame(t, doc, got)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, model.StateCached, got.State)
}

func TestProcess_BusyRejectsSecondDocument(t *testing.T) {
	ext := &fakeTextExtractor{
		result:  okExtraction(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newTestProcessor(ext, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
		done <- err
	}()

	<-ext.started
	_, err := p.Process(context.Background(), "/tmp/b.pdf", "b", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrBusy))

	close(ext.release)
	require.NoError(t, <-done)

	// The slot is free again once the first document finishes.
	_, err = p.Process(context.Background(), "/tmp/c.pdf", "c", nil)
	require.NoError(t, err)
}

func TestProcess_ConcurrentPollingDuringPipeline(t *testing.T) {
	// HTTP callers poll Get/List while a document is mid-pipeline; snapshot
	// reads and locked pipeline writes must not race (run with -race).
	ext := &fakeTextExtractor{
		result:  okExtraction(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newTestProcessor(ext, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
		done <- err
	}()

	<-ext.started
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, d := range p.List() {
				_ = d.State
				_ = d.PageCount
				if _, err := p.Get(d.ID); err != nil {
					return
				}
			}
		}
	}()

	close(ext.release)
	require.NoError(t, <-done)
	close(stop)
	wg.Wait()
}

func TestProcess_ExtractionFailure(t *testing.T) {
	boom := eris.Wrap(model.ErrPageProcessing, "all 3 pages failed")
	p := newTestProcessor(&fakeTextExtractor{err: boom}, nil, nil)

	var lastStatus model.ProgressStatus
	doc, err := p.Process(context.Background(), "/tmp/bad.pdf", "bad", func(status model.ProgressStatus, _ float64, _, _ string) {
		lastStatus = status
	})

	require.Error(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, model.StateFailed, doc.State)
	assert.Equal(t, model.ProgressError, lastStatus)

	// Failed documents stay visible for inspection.
	got, getErr := p.Get(doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.StateFailed, got.State)
}

func TestProcess_FieldExtractionFailure(t *testing.T) {
	failed := model.NewFieldRecord()
	failed.Method = model.MethodFailed
	fx := &fakeFieldExtractor{record: failed, err: eris.Wrap(model.ErrModelCall, "all chunks failed")}
	p := newTestProcessor(nil, fx, nil)

	doc, err := p.Process(context.Background(), "/tmp/chart.pdf", "chart", nil)

	require.Error(t, err)
	assert.Equal(t, model.StateFailed, doc.State)
	// The failed record is still attached for diagnosis.
	require.NotNil(t, doc.Fields)
	assert.Equal(t, model.MethodFailed, doc.Fields.Method)
}

func TestGet_UnknownID(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	_, err := p.Get("no-such-id")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestList_OrderedByIngestion(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	first, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), "/tmp/b.pdf", "b", nil)
	require.NoError(t, err)

	docs := p.List()
	require.Len(t, docs, 2)
	assert.Equal(t, first.ID, docs[0].ID)
	assert.Equal(t, second.ID, docs[1].ID)
	assert.False(t, docs[0].IngestedAt.After(docs[1].IngestedAt))
}

func TestDelete_RemovesDocument(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	doc, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)

	require.NoError(t, p.Delete(doc.ID))
	_, err = p.Get(doc.ID)
	assert.True(t, eris.Is(err, model.ErrNotFound))

	assert.True(t, eris.Is(p.Delete(doc.ID), model.ErrNotFound))
}

func TestDelete_RemovesTempSource(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	path := filepath.Join(t.TempDir(), "upload.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	doc, err := p.Process(context.Background(), path, "upload", nil, WithTempSource())
	require.NoError(t, err)

	require.NoError(t, p.Delete(doc.ID))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDelete_KeepsUserSource(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	path := filepath.Join(t.TempDir(), "chart.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	doc, err := p.Process(context.Background(), path, "chart", nil)
	require.NoError(t, err)

	require.NoError(t, p.Delete(doc.ID))
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestFieldReference_PopulatedField(t *testing.T) {
	finder := &fakeFinder{blocks: []model.MatchBlock{
		{Page: 1, X: 10, Y: 100, Width: 90, Height: 10, Strategy: model.StrategyPhrase},
	}}
	p := newTestProcessor(nil, nil, finder)

	doc, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)

	ref, err := p.FieldReference(doc.ID, model.FieldPatientName)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, model.FieldPatientName, ref.Field)
	assert.Equal(t, "Jane Doe", ref.Value)
	require.Len(t, ref.Blocks, 1)
	assert.Equal(t, 1, finder.calls)
}

func TestFieldReference_EmptyFieldSkipsReconciliation(t *testing.T) {
	finder := &fakeFinder{}
	p := newTestProcessor(nil, nil, finder)

	doc, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)

	ref, err := p.FieldReference(doc.ID, model.FieldDiagnosis)
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Zero(t, finder.calls)
}

func TestFieldReference_UnknownField(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	doc, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)

	_, err = p.FieldReference(doc.ID, model.FieldKey("favorite_color"))
	require.Error(t, err)
}

func TestFieldReference_UnknownDocument(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	_, err := p.FieldReference("no-such-id", model.FieldPatientName)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestProcess_StampsIngestionTime(t *testing.T) {
	p := newTestProcessor(nil, nil, nil)

	before := time.Now().UTC().Add(-time.Second)
	doc, err := p.Process(context.Background(), "/tmp/a.pdf", "a", nil)
	require.NoError(t, err)

	assert.True(t, doc.IngestedAt.After(before))
}
