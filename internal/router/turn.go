package router

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/navqueue/internal/navigator"
)

// turn tracks one execution of a queue entry.
type turn struct {
	span    trace.Span
	started time.Time
}

// advance runs queue heads until one needs stack-change notifications, the
// queue is empty, or the resume gate closes. Notifications already buffered
// on changes predate the session and are consumed before it starts.
func (r *Router[N, P]) advance(changes <-chan struct{}) {
	for r.running == nil && len(r.queue) > 0 && r.failure == nil {
		if r.policy == PolicyPostpone && (!r.resumed || r.blocked) {
			return
		}

		for len(changes) > 0 {
			<-changes
			r.stackChanged()
		}

		e := r.queue[0]
		r.running = e
		n, err := r.execute(e)

		if err != nil {
			r.running = nil
			r.discard += n
			r.failed(e, err)
			continue
		}

		if n == 0 {
			r.running = nil
			r.complete(e)
			continue
		}

		r.awaiting = n
		r.log.Debug("awaiting stack changes", "submission", e.id, "count", n)
		return
	}
}

// execute runs e's bodies in one mutation session and returns the number
// of mutations counted.
func (r *Router[N, P]) execute(e *entry[N]) (int, error) {
	_, span := r.tracer.Start(r.ctx, "navqueue.turn", trace.WithAttributes(
		attribute.String("navqueue.run", r.token),
		attribute.Int64("navqueue.submission", e.id),
		attribute.Int("navqueue.bodies", e.unit.Len()),
		attribute.Bool("navqueue.interrupting", e.unit.Interrupting()),
	))
	e.turn = &turn{span: span, started: time.Now()}

	r.log.Debug("turn started", "submission", e.id, "bodies", e.unit.Len())

	r.nav.StartSession()
	err := e.unit.Invoke(r.nav)
	n := r.nav.FinishSession()

	span.SetAttributes(attribute.Int("navqueue.mutations", n))
	r.metrics.mutated(n)
	r.emit(Event{Type: EventExecuted, Submission: e.id, Mutations: n, Error: errText(err)})

	return n, err
}

// failed applies the state-loss policy to a refusal, or fails the entry for
// any other error.
func (r *Router[N, P]) failed(e *entry[N], err error) {
	if !errors.Is(err, navigator.ErrStateLoss) {
		rerr := &RouterError{Code: ErrCodeUnitFailed, Submission: e.id, Err: err}
		r.log.Warn("unit failed", "submission", e.id, "error", err)
		r.popHead()
		r.endTurn(e, outcomeFailed, rerr)
		r.emit(Event{Type: EventResolved, Submission: e.id, Error: rerr.Error()})
		e.h.settle(false, rerr)
		return
	}

	r.metrics.refused(r.policy)
	r.emit(Event{Type: EventRefused, Submission: e.id, Policy: r.policy})

	switch r.policy {
	case PolicyPostpone:
		r.log.Info("mutation refused, postponing", "submission", e.id, "error", err)
		r.blocked = true
		r.endTurn(e, outcomePostponed, nil)

	case PolicyIgnore:
		r.log.Info("mutation refused, ignoring", "submission", e.id, "error", err)
		r.popHead()
		r.endTurn(e, outcomeIgnored, nil)
		r.emit(Event{Type: EventResolved, Submission: e.id, OK: false})
		e.h.settle(false, nil)

	default:
		rerr := &RouterError{Code: ErrCodeHostRefused, Submission: e.id, Err: err}
		r.log.Error("mutation refused", "submission", e.id, "error", err)
		r.failure = rerr
		r.popHead()
		r.endTurn(e, outcomeRefused, rerr)
		r.emit(Event{Type: EventResolved, Submission: e.id, Error: rerr.Error()})
		e.h.settle(false, rerr)
	}
}

// complete resolves the running entry as carried out.
func (r *Router[N, P]) complete(e *entry[N]) {
	r.popHead()
	r.endTurn(e, outcomeProcessed, nil)
	r.emit(Event{Type: EventResolved, Submission: e.id, OK: true})
	e.h.settle(true, nil)
}

// stackChanged counts one host notification.
func (r *Router[N, P]) stackChanged() {
	if r.discard > 0 {
		r.discard--
		r.log.Debug("stale stack change discarded", "remaining", r.discard)
		return
	}
	if r.running == nil {
		return
	}

	r.awaiting--
	if r.awaiting > 0 {
		return
	}

	e := r.running
	r.running = nil
	r.complete(e)
}

// resumeChanged records a resumed/paused transition. Every resumed value
// re-arms an entry postponed by a refusal.
func (r *Router[N, P]) resumeChanged(resumed bool) {
	r.resumed = resumed
	r.log.Debug("host resume state changed", "resumed", resumed)
	if resumed && r.blocked {
		r.blocked = false
		r.log.Info("retrying postponed entry")
	}
}

func (r *Router[N, P]) endTurn(e *entry[N], outcome string, err error) {
	t := e.turn
	if t == nil {
		return
	}
	e.turn = nil

	t.span.SetAttributes(attribute.String("navqueue.outcome", outcome))
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.span.End()
	r.metrics.turn(outcome, time.Since(t.started))
}
