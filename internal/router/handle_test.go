package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWorker runs posted tasks inline and can pretend to be the worker.
type stubWorker struct {
	worker bool
	posted int
}

func (w *stubWorker) post(t task) bool {
	w.posted++
	t()
	return true
}

func (w *stubWorker) onWorker() bool { return w.worker }

func TestHandle_SettleOnce(t *testing.T) {
	h := newHandle(&stubWorker{})

	var calls []bool
	h.onSettle(func(ok bool, err error) { calls = append(calls, ok) })

	assert.True(t, h.settle(true, nil))
	assert.False(t, h.settle(false, errors.New("late")), "second settle is ignored")

	ok, err := h.Result()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, []bool{true}, calls)

	h.onSettle(func(ok bool, err error) { calls = append(calls, ok) })
	assert.Equal(t, []bool{true, true}, calls, "late listeners run at once")
}

func TestHandle_Wait(t *testing.T) {
	h := newHandle(&stubWorker{})

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.settle(false, nil)
	}()

	ok, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandle_WaitContext(t *testing.T) {
	h := newHandle(&stubWorker{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandle_WaitOnWorker(t *testing.T) {
	w := &stubWorker{worker: true}
	h := newHandle(w)

	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, ErrReentrant)

	h.settle(true, nil)
	ok, err := h.Wait(context.Background())
	require.NoError(t, err, "resolved handles can be read anywhere")
	assert.True(t, ok)
}

func TestHandle_Cancel(t *testing.T) {
	w := &stubWorker{}

	t.Run("without cancel hook", func(t *testing.T) {
		h := newHandle(w)
		h.Cancel()
		ok, err := h.Result()
		assert.False(t, ok)
		assert.NoError(t, err)
		assert.True(t, h.isDone())
	})

	t.Run("with cancel hook", func(t *testing.T) {
		h := newHandle(w)
		hooked := false
		h.cancel = func() { hooked = true }
		h.Cancel()
		assert.True(t, hooked)
		assert.False(t, h.isDone(), "the hook decides how to resolve")
	})

	t.Run("resolved", func(t *testing.T) {
		before := w.posted
		h := newHandle(w)
		h.settle(true, nil)
		h.Cancel()
		assert.Equal(t, before, w.posted, "nothing posted for resolved handles")
	})
}

func TestCompletion(t *testing.T) {
	boom := errors.New("boom")
	h := newHandle(&stubWorker{})
	c := &Completion{h: h}

	h.settle(false, boom)

	<-c.Done()
	assert.ErrorIs(t, c.Wait(context.Background()), boom)
	assert.ErrorIs(t, c.Err(), boom)
}
