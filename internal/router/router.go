package router

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/navqueue/internal/navigator"
	"github.com/roach88/navqueue/internal/unit"
)

// Lifecycle is the host's notification side. StackChanges fires once per
// mutation of the host's presentation stack, whoever performed it.
type Lifecycle interface {
	StackChanges() <-chan struct{}
}

// ResumeSignal is implemented by lifecycles that report whether the host
// currently accepts mutations. WatchResume returns the current state and a
// channel of later states. The PolicyPostpone policy requires it.
type ResumeSignal interface {
	WatchResume() (resumed bool, changes <-chan bool)
}

// Router is the single-worker navigation scheduler.
//
// N is the navigator the worker drives; P is the provider handed to build
// functions. Both are created by the caller, in that order, and passed to
// New.
//
// Thread-safety model:
//   - Call, CallResponsive, Pending, Err: safe from any goroutine
//   - Attach, Detach: safe from any goroutine except the worker
//   - unit bodies, observers: run on the worker goroutine
type Router[N navigator.Sessioner, P any] struct {
	nav      N
	provider P

	policy    StateLossPolicy
	log       *slog.Logger
	observers []Observer
	metrics   *Metrics
	tracer    trace.Tracer
	token     string

	mailbox  *mailbox
	ids      *Clock
	seqs     *Clock
	events   *Clock
	workerID  atomic.Int64
	depth     atomic.Int64
	resolving atomic.Int64

	mu    sync.Mutex
	stop  chan struct{}
	done  chan struct{}
	fatal error

	// Worker-owned state.
	ctx      context.Context
	queue    []*entry[N]
	running  *entry[N]
	awaiting int
	discard  int
	resumed  bool
	blocked  bool
	watchers []*watcher
	open     map[int64]*Handle
	failure  error
}

// entry is one Simple unit waiting in, or running at the head of, the queue.
type entry[N any] struct {
	id   int64
	seq  int64
	unit *unit.Simple[N]
	h    *Handle

	turn *turn
}

type options struct {
	policy    StateLossPolicy
	logger    *slog.Logger
	observers []Observer
	metrics   *Metrics
	tracer    trace.TracerProvider
	token     string
	tokens    TokenGenerator
}

// Option configures a Router.
type Option func(*options)

// WithPolicy sets the state-loss policy. Default: PolicyPostpone.
func WithPolicy(p StateLossPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver adds an event observer. Observers run in the order added.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithMetrics records router metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider sets the provider for turn spans.
// Default: the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithRunToken fixes the run token instead of generating one.
func WithRunToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithTokenGenerator sets the generator for the run token.
// Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *options) { o.tokens = g }
}

// New creates a detached Router over nav. provider is passed to every build
// function given to Call and CallResponsive.
func New[N navigator.Sessioner, P any](nav N, provider P, opts ...Option) *Router[N, P] {
	o := options{
		policy: PolicyPostpone,
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}
	if o.token == "" {
		o.token = o.tokens.Generate()
	}

	return &Router[N, P]{
		nav:       nav,
		provider:  provider,
		policy:    o.policy,
		log:       o.logger.With("run", o.token),
		observers: o.observers,
		metrics:   o.metrics,
		tracer:    o.tracer.Tracer("github.com/roach88/navqueue/internal/router"),
		token:     o.token,
		mailbox:   newMailbox(),
		ids:       NewClock(),
		seqs:      NewClock(),
		events:    NewClock(),
		open:      make(map[int64]*Handle),
	}
}

// Token returns the run token stamped on logs, events and spans.
func (r *Router[N, P]) Token() string {
	return r.token
}

// Policy returns the active state-loss policy.
func (r *Router[N, P]) Policy() StateLossPolicy {
	return r.policy
}

// CallResponsive builds a unit with the router's provider and schedules it.
//
// build runs synchronously on the calling goroutine. The returned handle
// resolves true once the unit was carried out, false if it was cancelled,
// interrupted or dropped by PolicyIgnore. A nil unit resolves true without
// touching the host. A unit that could not be built (see unit.Invalid)
// resolves with an ErrCodeInvalidUnit error before CallResponsive returns
// and is never queued.
//
// Submissions made while detached wait in the mailbox until the next
// Attach.
func (r *Router[N, P]) CallResponsive(build func(p P) unit.Unit[N]) *Handle {
	u := build(r.provider)
	h := newHandle(r)
	if err := unit.BuildErr[N](u); err != nil {
		r.log.Warn("call rejected", "error", err)
		h.settle(false, &RouterError{Code: ErrCodeInvalidUnit, Err: err})
		return h
	}
	if !r.post(func() { r.submit(u, h) }) {
		h.settle(false, ErrTerminated)
	}
	return h
}

// Call is CallResponsive with the processed flag discarded.
func (r *Router[N, P]) Call(build func(p P) unit.Unit[N]) *Completion {
	return &Completion{h: r.CallResponsive(build)}
}

// Pending returns the number of entries in the queue.
func (r *Router[N, P]) Pending() int {
	return int(r.depth.Load())
}

// Resolving returns the number of reactive sources whose result has not
// yet reached the worker.
func (r *Router[N, P]) Resolving() int {
	return int(r.resolving.Load())
}

// Sync blocks until every task posted to the worker before the call has
// run. While detached it waits for the next Attach or for ctx.
func (r *Router[N, P]) Sync(ctx context.Context) error {
	if r.onWorker() {
		return ErrReentrant
	}
	done := make(chan struct{})
	if !r.post(func() { close(done) }) {
		return ErrTerminated
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the fatal refusal that stopped the worker under PolicyError,
// or nil.
func (r *Router[N, P]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// Attach starts the worker over lc. It returns ErrAlreadyAttached if the
// router is attached, ErrResumeSignalRequired if the policy is
// PolicyPostpone and lc does not implement ResumeSignal, and ErrTerminated
// after a fatal refusal.
//
// Cancelling ctx has the same effect as Detach. ctx is also the parent of
// the contexts passed to reactive sources.
func (r *Router[N, P]) Attach(ctx context.Context, lc Lifecycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fatal != nil {
		return ErrTerminated
	}
	if r.done != nil {
		return ErrAlreadyAttached
	}

	resumed := true
	var resumeCh <-chan bool
	if rs, ok := lc.(ResumeSignal); ok {
		resumed, resumeCh = rs.WatchResume()
	} else if r.policy == PolicyPostpone {
		return ErrResumeSignalRequired
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done

	r.log.Info("router attached", "policy", r.policy.String(), "resumed", resumed)

	go r.loop(ctx, lc.StackChanges(), resumed, resumeCh, stop, done)
	return nil
}

// Detach stops the worker and waits for it to exit. Every submission still
// unresolved, including one whose turn is awaiting notifications, resolves
// false. Detach on a detached router does nothing. Detach from the worker
// goroutine returns ErrReentrant.
func (r *Router[N, P]) Detach() error {
	if r.onWorker() {
		return ErrReentrant
	}

	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}

	close(stop)
	<-done
	return nil
}

func (r *Router[N, P]) post(t task) bool {
	return r.mailbox.Enqueue(t)
}

func (r *Router[N, P]) onWorker() bool {
	id := r.workerID.Load()
	return id != 0 && id == goid.Get()
}

// loop is the worker. All fields marked worker-owned are only touched here
// and in functions it calls.
func (r *Router[N, P]) loop(
	ctx context.Context,
	changes <-chan struct{},
	resumed bool,
	resumeCh <-chan bool,
	stop <-chan struct{},
	done chan struct{},
) {
	defer close(done)
	defer func() {
		r.mu.Lock()
		if r.done == done {
			r.stop, r.done = nil, nil
		}
		r.mu.Unlock()
	}()

	r.workerID.Store(goid.Get())
	defer r.workerID.Store(0)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.ctx = sctx
	r.resumed = resumed

	for {
		r.drain()
		r.advance(changes)

		if r.failure != nil {
			r.terminate(r.failure)
			return
		}

		select {
		case <-ctx.Done():
			r.log.Info("router stopping: context cancelled")
			r.shutdown()
			return

		case <-stop:
			r.log.Info("router detached")
			r.shutdown()
			return

		case <-r.mailbox.Wait():

		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.stackChanged()

		case v, ok := <-resumeCh:
			if !ok {
				resumeCh = nil
				continue
			}
			r.resumeChanged(v)
		}
	}
}

// drain runs every task currently in the mailbox.
func (r *Router[N, P]) drain() {
	for {
		t, ok := r.mailbox.TryDequeue()
		if !ok {
			return
		}
		t()
	}
}

// submit assigns the submission id and defers u. Runs on the worker.
func (r *Router[N, P]) submit(u unit.Unit[N], h *Handle) {
	if r.failure != nil {
		h.settle(false, ErrTerminated)
		return
	}

	id := r.ids.Next()
	h.setID(id)

	kind := "none"
	if !unit.IsNil[N](u) {
		kind = u.Kind().String()
	}
	r.metrics.submitted(kind)
	r.emit(Event{Type: EventSubmitted, Submission: id, Kind: kind})

	r.open[id] = h
	h.onSettle(func(ok bool, err error) {
		delete(r.open, id)
		r.emit(Event{Type: EventCompleted, Submission: id, OK: ok, Error: errText(err)})
	})

	if unit.IsNil[N](u) {
		h.settle(true, nil)
		return
	}

	if u.Kind() == unit.KindSimple {
		r.deferUnit(id, u, h)
		return
	}
	r.interruptible(id, true, h, func(inner *Handle) {
		r.deferUnit(id, u, inner)
	})
}

// shutdown resolves everything still outstanding with false. Runs on the
// worker as it exits after Detach or context cancellation.
func (r *Router[N, P]) shutdown() {
	r.drain()

	if e := r.running; e != nil {
		r.running = nil
		// Notifications still owed to e arrive after the next Attach.
		r.discard += r.awaiting
		r.awaiting = 0
		r.popHead()
		r.endTurn(e, outcomeDetached, nil)
		r.emit(Event{Type: EventResolved, Submission: e.id, OK: false})
		e.h.settle(false, nil)
	}

	for len(r.queue) > 0 {
		e := r.queue[0]
		r.popHead()
		r.metrics.cancelled()
		r.emit(Event{Type: EventCancelled, Submission: e.id})
		e.h.settle(false, nil)
	}

	for _, id := range openIDs(r.open) {
		if h, ok := r.open[id]; ok {
			h.cancelNow()
		}
	}
	for _, id := range openIDs(r.open) {
		if h, ok := r.open[id]; ok {
			h.settle(false, nil)
		}
	}

	r.watchers = nil
	r.blocked = false
}

// terminate fails everything still outstanding with ErrTerminated and
// closes the mailbox. Runs on the worker after a fatal refusal.
func (r *Router[N, P]) terminate(cause error) {
	r.mu.Lock()
	r.fatal = cause
	r.mu.Unlock()

	r.log.Error("router terminated", "error", cause)

	r.mailbox.Close()
	r.drain()

	for len(r.queue) > 0 {
		e := r.queue[0]
		r.popHead()
		e.h.settle(false, ErrTerminated)
	}
	for _, id := range openIDs(r.open) {
		if h, ok := r.open[id]; ok {
			h.settle(false, ErrTerminated)
		}
	}
	r.watchers = nil
}

func (r *Router[N, P]) emit(ev Event) {
	if len(r.observers) == 0 {
		return
	}
	ev.Seq = r.events.Next()
	ev.Run = r.token
	for _, obs := range r.observers {
		obs.Observe(ev)
	}
}

func openIDs(open map[int64]*Handle) []int64 {
	ids := make([]int64, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
