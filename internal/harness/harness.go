package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/navqueue/internal/logging"
	"github.com/roach88/navqueue/internal/navigator"
	"github.com/roach88/navqueue/internal/router"
	"github.com/roach88/navqueue/internal/simhost"
	"github.com/roach88/navqueue/internal/tag"
	"github.com/roach88/navqueue/internal/testutil"
	"github.com/roach88/navqueue/internal/unit"
)

// DefaultSettleTimeout bounds the wait for the router to go quiet after a
// step.
const DefaultSettleTimeout = 5 * time.Second

type (
	nav      = *navigator.StackNavigator
	provider = *navigator.Provider
)

// Harness is the scenario execution engine. It owns one in-memory host and
// one router, and drives them step by step, waiting after each step until
// the router has nothing left to do.
type Harness struct {
	scenario *Scenario
	host     *simhost.Host
	router   *router.Router[nav, provider]
	sources  *sources
	trace    *tracer
	log      *slog.Logger
	timeout  time.Duration

	handles  map[string]*router.Handle
	labels   []string
	attached bool
}

type config struct {
	logger    *slog.Logger
	observers []router.Observer
	metrics   *router.Metrics
	timeout   time.Duration
}

// Option configures a scenario run.
type Option func(*config)

// WithLogger sets the logger passed to the router. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver adds a router event observer next to the trace recorder.
func WithObserver(obs router.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, obs) }
}

// WithMetrics records router metrics into m.
func WithMetrics(m *router.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithSettleTimeout overrides DefaultSettleTimeout.
func WithSettleTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh host and router. The run token is
// fixed, so the same scenario produces the same trace on every run.
//
// Execution flow:
// 1. Create the host with the initial stack and attach the router
// 2. Execute steps, settling the router after each one
// 3. Capture results and the final host state, then detach
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		logger:  logging.Discard(),
		timeout: DefaultSettleTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy := router.PolicyPostpone
	if scenario.Policy != "" {
		p, err := router.ParsePolicy(scenario.Policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	hostOpts := []simhost.Option{simhost.WithStack(scenario.InitialStack...)}
	if scenario.StartPaused {
		hostOpts = append(hostOpts, simhost.StartPaused())
	}
	host := simhost.New(hostOpts...)

	h := &Harness{
		scenario: scenario,
		host:     host,
		sources:  newSources(),
		trace:    newTracer(host),
		log:      cfg.logger,
		timeout:  cfg.timeout,
		handles:  make(map[string]*router.Handle),
	}

	navigatorImpl := navigator.NewStackNavigator(host, tag.Default())
	routerOpts := []router.Option{
		router.WithPolicy(policy),
		router.WithLogger(cfg.logger),
		router.WithTokenGenerator(testutil.NewFixedGenerator(scenario.RunToken)),
		router.WithObserver(h.trace),
		router.WithMetrics(cfg.metrics),
	}
	for _, obs := range cfg.observers {
		routerOpts = append(routerOpts, router.WithObserver(obs))
	}
	h.router = router.New(navigatorImpl, navigator.NewProvider(navigatorImpl), routerOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := h.router.Attach(runCtx, host); err != nil {
		return nil, fmt.Errorf("attach router: %w", err)
	}
	h.attached = true
	defer func() { _ = h.router.Detach() }()

	for i, step := range scenario.Steps {
		if err := h.execute(runCtx, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := h.settle(runCtx); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	result := h.collect()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute performs one step. It does not wait for the router.
func (h *Harness) execute(ctx context.Context, step Step) error {
	h.trace.step(describe(step))

	switch {
	case step.Call != nil:
		spec := step.Call.Unit
		hd := h.router.CallResponsive(func(p provider) unit.Unit[nav] {
			return h.build(p, spec)
		})
		h.handles[step.Call.Label] = hd
		h.labels = append(h.labels, step.Call.Label)

	case step.Cancel != "":
		hd, ok := h.handles[step.Cancel]
		if !ok {
			return fmt.Errorf("cancel: unknown label %q", step.Cancel)
		}
		hd.Cancel()

	case step.Emit != nil:
		var err error
		if step.Emit.Fail != "" {
			err = errors.New(step.Emit.Fail)
		}
		if n := h.sources.emit(step.Emit.Source, step.Emit.Value, err); n == 0 {
			return fmt.Errorf("emit: no reactive unit waiting on source %q", step.Emit.Source)
		}

	case step.Pause:
		h.host.Pause()
	case step.Resume:
		h.host.Resume()
	case step.Hold:
		h.host.Hold()
	case step.Release != nil:
		h.host.Release(*step.Release)
	case step.External:
		h.host.Emit()

	case step.Detach:
		if err := h.router.Detach(); err != nil {
			return fmt.Errorf("detach: %w", err)
		}
		h.attached = false

	case step.Attach:
		if err := h.router.Attach(ctx, h.host); err != nil {
			return fmt.Errorf("attach: %w", err)
		}
		h.attached = true

	default:
		return fmt.Errorf("step has no action")
	}

	return nil
}

// settle waits until the worker is idle: the mailbox drained, every host
// notification received, and every reactive source either blocked on an
// emit step or reported back.
func (h *Harness) settle(ctx context.Context) error {
	if !h.attached {
		h.trace.sync()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	quiet := func() bool {
		return h.host.Undelivered() == 0 && h.router.Resolving() == h.sources.blocked()
	}

	for {
		err := h.router.Sync(ctx)
		if errors.Is(err, router.ErrTerminated) {
			h.trace.sync()
			return nil
		}
		if err != nil {
			return fmt.Errorf("router did not settle: %w", err)
		}

		if quiet() {
			n := h.trace.len()
			if err := h.router.Sync(ctx); err != nil && !errors.Is(err, router.ErrTerminated) {
				return fmt.Errorf("router did not settle: %w", err)
			}
			if quiet() && h.trace.len() == n {
				h.trace.sync()
				return nil
			}
			continue
		}

		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("router did not settle: %w", ctx.Err())
		}
	}
}

// collect snapshots results and host state, and labels the trace.
func (h *Harness) collect() *Result {
	result := NewResult()
	result.RunToken = h.router.Token()
	result.Stack = h.host.Tags()
	result.Dialogs = h.host.Dialogs()
	result.Labels = append([]string(nil), h.labels...)

	bySubmission := make(map[int64]string, len(h.handles))
	for label, hd := range h.handles {
		result.Results[label] = resultText(hd)
		if id := hd.ID(); id != 0 {
			bySubmission[id] = label
		}
	}

	result.Trace = h.trace.stop()
	for i := range result.Trace {
		if rec := &result.Trace[i]; rec.Event != "" {
			rec.Label = bySubmission[rec.Submission]
		}
	}
	return result
}

// build turns a unit description into a unit. It runs on the calling
// goroutine for top-level units and on the resolving goroutine for units
// picked by a reactive mapper.
func (h *Harness) build(p provider, spec UnitSpec) unit.Unit[nav] {
	switch {
	case spec.Simple != nil:
		return buildSimple(p, spec.Simple)

	case spec.Reactive != nil:
		cases := spec.Reactive.Cases
		return unit.NewReactive(h.sources.source(spec.Reactive.Source), func(v string) unit.Unit[nav] {
			c, ok := cases[v]
			if !ok {
				return nil
			}
			return h.build(p, c)
		})

	case spec.Chain != nil:
		units := make([]unit.Unit[nav], 0, len(spec.Chain))
		for _, c := range spec.Chain {
			units = append(units, h.build(p, c))
		}
		return p.Chain(units...)
	}
	return nil
}

func buildSimple(p provider, spec *SimpleSpec) *unit.Simple[nav] {
	interrupting := true
	if spec.Interrupting != nil {
		interrupting = *spec.Interrupting
	}

	s := p.SimpleWith(interrupting, nil)
	for _, op := range spec.Ops {
		s = s.Plus(opUnit(p, op))
	}
	return s
}

func opUnit(p provider, op OpSpec) *unit.Simple[nav] {
	switch {
	case op.Show != "":
		return p.Show(op.Show)
	case op.Close:
		return p.CloseCurrent()
	case op.Replace != "":
		return p.Replace(op.Replace)
	case op.Clear:
		return p.ClearAll()
	case op.ChangeRoot != "":
		return p.ChangeRoot(op.ChangeRoot)
	case op.CloseUntil != "":
		return p.CloseUntil(op.CloseUntil, op.Inclusive)
	case op.Dialog != "":
		return p.ShowDialog(op.Dialog)
	default:
		msg := op.Fail
		return p.Simple(func(nav) error { return errors.New(msg) })
	}
}

func describe(step Step) string {
	switch {
	case step.Call != nil:
		return "call " + step.Call.Label
	case step.Cancel != "":
		return "cancel " + step.Cancel
	case step.Emit != nil && step.Emit.Fail != "":
		return "emit " + step.Emit.Source + " fail " + step.Emit.Fail
	case step.Emit != nil:
		return "emit " + step.Emit.Source + " " + step.Emit.Value
	case step.Pause:
		return "pause"
	case step.Resume:
		return "resume"
	case step.Hold:
		return "hold"
	case step.Release != nil && *step.Release < 0:
		return "release all"
	case step.Release != nil:
		return "release " + strconv.Itoa(*step.Release)
	case step.External:
		return "external"
	case step.Detach:
		return "detach"
	case step.Attach:
		return "attach"
	default:
		return "noop"
	}
}

// resultText renders a handle's state: "pending", "true", "false", or
// "false: <reason>" for a failure.
func resultText(hd *router.Handle) string {
	select {
	case <-hd.Done():
	default:
		return "pending"
	}

	ok, err := hd.Result()
	switch {
	case ok:
		return "true"
	case err == nil:
		return "false"
	}

	var re *router.RouterError
	if errors.As(err, &re) {
		return "false: " + string(re.Code)
	}
	if errors.Is(err, router.ErrTerminated) {
		return "false: terminated"
	}
	return "false: " + err.Error()
}
