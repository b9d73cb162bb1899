package ocr

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/chartscan/internal/model"
)

type fakeEngine struct {
	id       int
	closed   bool
	closeErr error
}

func (f *fakeEngine) Recognize(context.Context, []byte) (PageText, error) {
	return PageText{Text: "recognized"}, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return f.closeErr
}

func TestNewPool_AllHandlesUp(t *testing.T) {
	made := 0
	pool, err := NewPool(3, func() (Engine, error) {
		made++
		return &fakeEngine{id: made}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, 3, made)
}

func TestNewPool_PartialInitIsDegradedNotFatal(t *testing.T) {
	made := 0
	pool, err := NewPool(4, func() (Engine, error) {
		made++
		if made%2 == 0 {
			return nil, eris.New("tessdata missing")
		}
		return &fakeEngine{id: made}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, pool.Size())
}

func TestNewPool_ZeroHandlesFatal(t *testing.T) {
	pool, err := NewPool(2, func() (Engine, error) {
		return nil, eris.New("tessdata missing")
	})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrEngineInit))
	assert.Nil(t, pool)
}

func TestNewPool_ClampsRequestedToOne(t *testing.T) {
	pool, err := NewPool(0, func() (Engine, error) {
		return &fakeEngine{}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, pool.Size())
}

func TestPool_AcquireRelease(t *testing.T) {
	pool, err := NewPool(1, func() (Engine, error) {
		return &fakeEngine{}, nil
	})
	require.NoError(t, err)

	engine, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, engine)

	// The only handle is out; a second acquire must wait for release.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)

	pool.Release(engine)
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, engine, again)
}

func TestPool_AcquireHonorsCancelledContext(t *testing.T) {
	pool, err := NewPool(1, func() (Engine, error) {
		return &fakeEngine{}, nil
	})
	require.NoError(t, err)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_CloseReleasesAllEvenOnError(t *testing.T) {
	engines := []*fakeEngine{
		{id: 1, closeErr: eris.New("close failed")},
		{id: 2},
		{id: 3},
	}
	i := 0
	pool, err := NewPool(3, func() (Engine, error) {
		e := engines[i]
		i++
		return e, nil
	})
	require.NoError(t, err)

	err = pool.Close()
	require.Error(t, err)
	for _, e := range engines {
		assert.True(t, e.closed)
	}
}
