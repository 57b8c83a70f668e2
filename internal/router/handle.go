package router

import (
	"context"
	"sync"
)

// worker is the part of the router a handle needs.
type worker interface {
	post(t task) bool
	onWorker() bool
}

// Handle is the single-resolution result of CallResponsive.
//
// It resolves exactly once: true if the action was carried out, false if it
// was cancelled, interrupted or ignored, or with an error. Handles are safe
// for concurrent use.
type Handle struct {
	w    worker
	done chan struct{}

	mu  sync.Mutex
	id  int64
	ok  bool
	err error

	// Worker-owned.
	cancel    func()
	listeners []func(ok bool, err error)
}

func newHandle(w worker) *Handle {
	return &Handle{w: w, done: make(chan struct{})}
}

// ID returns the submission id, or 0 while the submission is still waiting
// in the mailbox.
func (h *Handle) ID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Done is closed once the handle resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (h *Handle) Result() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ok, h.err
}

// Wait blocks until the handle resolves or ctx is done. Waiting from the
// worker goroutine on an unresolved handle returns ErrReentrant.
func (h *Handle) Wait(ctx context.Context) (bool, error) {
	select {
	case <-h.done:
		return h.Result()
	default:
	}

	if h.w != nil && h.w.onWorker() {
		return false, ErrReentrant
	}

	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Cancel asks the router to drop the submission. An entry that is already
// executing cannot be cancelled and runs to completion. Cancelling a
// resolved handle does nothing.
func (h *Handle) Cancel() {
	if h.isDone() || h.w == nil {
		return
	}
	h.w.post(h.cancelNow)
}

func (h *Handle) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) setID(id int64) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

// cancelNow runs on the worker.
func (h *Handle) cancelNow() {
	if h.isDone() {
		return
	}
	if h.cancel != nil {
		h.cancel()
		return
	}
	h.settle(false, nil)
}

// settle resolves the handle and runs its listeners in registration order.
// It reports whether this call resolved the handle.
func (h *Handle) settle(ok bool, err error) bool {
	h.mu.Lock()
	if h.isDone() {
		h.mu.Unlock()
		return false
	}
	h.ok, h.err = ok, err
	close(h.done)
	listeners := h.listeners
	h.listeners = nil
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(ok, err)
	}
	return true
}

// onSettle registers fn to run when the handle resolves, or runs it at once
// if it already has.
func (h *Handle) onSettle(fn func(ok bool, err error)) {
	h.mu.Lock()
	if h.isDone() {
		ok, err := h.ok, h.err
		h.mu.Unlock()
		fn(ok, err)
		return
	}
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Completion is the result of Call: it reports completion or failure and
// hides the processed flag.
type Completion struct {
	h *Handle
}

// Done is closed once the submission resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.h.Done()
}

// Wait blocks until the submission resolves or ctx is done and returns the
// submission's error, if any.
func (c *Completion) Wait(ctx context.Context) error {
	_, err := c.h.Wait(ctx)
	return err
}

// Err returns the submission's error. It is only meaningful after Done is
// closed.
func (c *Completion) Err() error {
	_, err := c.h.Result()
	return err
}

// Cancel asks the router to drop the submission.
func (c *Completion) Cancel() {
	c.h.Cancel()
}
