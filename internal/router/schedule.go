package router

import (
	"context"
	"fmt"

	"github.com/roach88/navqueue/internal/unit"
)

// watcher is the interruption side of one interruptible deferral. It fires
// when an interrupting Simple entry from another submission becomes the
// queue's tail after the deferral started.
type watcher struct {
	id    int64
	since int64
	fire  func()
}

// deferUnit dispatches u by kind. h resolves when u is done.
// All defer* functions run on the worker.
func (r *Router[N, P]) deferUnit(id int64, u unit.Unit[N], h *Handle) {
	switch v := u.(type) {
	case *unit.Simple[N]:
		r.deferSimple(id, v, h)
	case *unit.Chain[N]:
		r.deferChain(id, v, h)
	case unit.Resolver[N]:
		r.deferReactive(id, v, h)
	default:
		h.settle(false, &RouterError{
			Code:       ErrCodeUnitFailed,
			Submission: id,
			Err:        fmt.Errorf("unsupported unit %T", u),
		})
	}
}

// deferSimple appends s to the queue.
func (r *Router[N, P]) deferSimple(id int64, s *unit.Simple[N], h *Handle) {
	e := &entry[N]{id: id, seq: r.seqs.Next(), unit: s, h: h}

	h.cancel = func() {
		if r.running == e {
			r.log.Debug("cancel ignored: entry is executing", "submission", id)
			return
		}
		if !r.remove(e) {
			return
		}
		r.metrics.cancelled()
		r.emit(Event{Type: EventCancelled, Submission: id})
		h.settle(false, nil)
	}

	r.queue = append(r.queue, e)
	r.emit(Event{Type: EventEnqueued, Submission: id})
	r.queueChanged()
}

// deferReactive resolves the source off the worker, then defers the mapped
// unit under the same submission id.
func (r *Router[N, P]) deferReactive(id int64, res unit.Resolver[N], h *Handle) {
	ctx, cancel := context.WithCancel(r.ctx)

	var child *Handle
	h.cancel = func() {
		if child != nil {
			child.cancelNow()
			return
		}
		cancel()
		r.metrics.cancelled()
		r.emit(Event{Type: EventCancelled, Submission: id})
		h.settle(false, nil)
	}

	r.resolving.Add(1)
	go func() {
		next, err := res.Resolve(ctx)
		posted := r.post(func() {
			defer cancel()
			r.resolving.Add(-1)

			if h.isDone() {
				return
			}
			if ctx.Err() != nil {
				h.settle(false, nil)
				return
			}
			if err != nil {
				r.log.Info("reactive source failed", "submission", id, "error", err)
				h.settle(false, &RouterError{Code: ErrCodeSourceFailed, Submission: id, Err: err})
				return
			}
			if unit.IsNil[N](next) {
				h.settle(true, nil)
				return
			}

			child = newHandle(r)
			child.setID(id)
			child.onSettle(func(ok bool, err error) { h.settle(ok, err) })
			r.deferUnit(id, next, child)
		})
		if !posted {
			r.resolving.Add(-1)
			cancel()
		}
	}()
}

// deferChain defers the chain's units one after another. Each unit is
// deferred only once the previous one resolved true.
func (r *Router[N, P]) deferChain(id int64, c *unit.Chain[N], h *Handle) {
	units := c.Units()
	if len(units) == 0 {
		h.settle(true, nil)
		return
	}

	var current *Handle
	h.cancel = func() {
		if current != nil {
			current.cancelNow()
			return
		}
		h.settle(false, nil)
	}

	var step func(i int)
	step = func(i int) {
		if h.isDone() {
			return
		}
		if i == len(units) {
			h.settle(true, nil)
			return
		}

		sub := newHandle(r)
		sub.setID(id)
		current = sub
		sub.onSettle(func(ok bool, err error) {
			switch {
			case err != nil:
				h.settle(false, err)
			case !ok:
				h.settle(false, nil)
			default:
				step(i + 1)
			}
		})

		u := units[i]
		r.interruptible(id, false, sub, func(inner *Handle) {
			r.deferUnit(id, u, inner)
		})
	}
	step(0)
}

// interruptible races start's work against later interrupting entries.
//
// outer resolves with the work's result, or false if an interrupting Simple
// entry of another submission is queued first. The work keeps running after
// losing the race; only outer's result is pre-empted. top marks the
// wrapper of a whole submission, the only one reported as interrupted.
func (r *Router[N, P]) interruptible(id int64, top bool, outer *Handle, start func(inner *Handle)) {
	inner := newHandle(r)
	inner.setID(id)

	w := &watcher{id: id, since: r.seqs.Current()}
	w.fire = func() {
		if outer.isDone() {
			return
		}
		if top {
			r.log.Info("submission interrupted", "submission", id)
			r.metrics.interrupted()
			r.emit(Event{Type: EventInterrupted, Submission: id})
		}
		outer.settle(false, nil)
	}
	r.watchers = append(r.watchers, w)

	inner.onSettle(func(ok bool, err error) {
		r.unwatch(w)
		outer.settle(ok, err)
	})
	outer.cancel = inner.cancelNow

	start(inner)
}

func (r *Router[N, P]) unwatch(w *watcher) {
	for i, x := range r.watchers {
		if x == w {
			r.watchers = append(r.watchers[:i:i], r.watchers[i+1:]...)
			return
		}
	}
}

// remove takes e out of the queue. It reports whether e was queued.
func (r *Router[N, P]) remove(e *entry[N]) bool {
	for i, x := range r.queue {
		if x == e {
			r.queue = append(r.queue[:i:i], r.queue[i+1:]...)
			r.queueChanged()
			return true
		}
	}
	return false
}

// popHead removes the queue head.
func (r *Router[N, P]) popHead() {
	r.queue[0] = nil
	r.queue = r.queue[1:]
	r.queueChanged()
}

// queueChanged publishes the queue depth and fires the watchers the new
// tail interrupts.
func (r *Router[N, P]) queueChanged() {
	r.depth.Store(int64(len(r.queue)))
	r.metrics.depth(len(r.queue))

	if len(r.watchers) == 0 || len(r.queue) == 0 {
		return
	}
	tail := r.queue[len(r.queue)-1]
	if !tail.unit.Interrupting() {
		return
	}

	var fired []*watcher
	kept := make([]*watcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		if tail.seq > w.since && tail.id != w.id {
			fired = append(fired, w)
		} else {
			kept = append(kept, w)
		}
	}
	r.watchers = kept

	for _, w := range fired {
		w.fire()
	}
}
