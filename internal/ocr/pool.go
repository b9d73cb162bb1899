package ocr

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carelane/chartscan/internal/model"
)

// Pool owns a fixed set of engine handles. Acquire hands out exclusive
// ownership of one handle; Release returns it. The pool size is the hard
// concurrency bound for recognitions.
type Pool struct {
	handles chan Engine
	all     []Engine
}

// NewPool initializes up to requested handles via factory. Individual
// initialization failures are non-fatal: the pool proceeds with however many
// handles came up. Zero successful handles is fatal.
func NewPool(requested int, factory EngineFactory) (*Pool, error) {
	if requested < 1 {
		requested = 1
	}

	p := &Pool{
		handles: make(chan Engine, requested),
		all:     make([]Engine, 0, requested),
	}

	for i := 0; i < requested; i++ {
		engine, err := factory()
		if err != nil {
			zap.L().Warn("ocr: engine handle failed to initialize",
				zap.Int("handle", i),
				zap.Error(err),
			)
			continue
		}
		p.all = append(p.all, engine)
		p.handles <- engine
	}

	if len(p.all) == 0 {
		return nil, eris.Wrapf(model.ErrEngineInit, "ocr: 0 of %d handles initialized", requested)
	}

	if len(p.all) < requested {
		zap.L().Warn("ocr: pool running degraded",
			zap.Int("requested", requested),
			zap.Int("initialized", len(p.all)),
		)
	}

	return p, nil
}

// Size returns the number of usable handles.
func (p *Pool) Size() int {
	return len(p.all)
}

// Acquire blocks until a handle is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	select {
	case engine := <-p.handles:
		return engine, nil
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "ocr: acquire handle")
	}
}

// Release returns a handle to the pool. Must be called exactly once per
// successful Acquire, including on error paths.
func (p *Pool) Release(engine Engine) {
	p.handles <- engine
}

// Close releases every handle. A close failure on one handle does not stop
// the rest from being released; the first error is returned.
func (p *Pool) Close() error {
	var firstErr error
	for _, engine := range p.all {
		if err := engine.Close(); err != nil {
			zap.L().Warn("ocr: handle close failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
