package harness

import (
	"context"
	"sync"

	"github.com/roach88/navqueue/internal/router"
	"github.com/roach88/navqueue/internal/simhost"
	"github.com/roach88/navqueue/internal/unit"
)

// tracer interleaves step markers, host operations and router events into
// one trace. Host operations are pulled from the host's log whenever a
// record is added, so an operation always precedes the event it caused.
type tracer struct {
	mu      sync.Mutex
	host    *simhost.Host
	seen    int
	records []Record
	stopped bool
}

func newTracer(host *simhost.Host) *tracer {
	return &tracer{host: host}
}

// Observe implements router.Observer.
func (t *tracer) Observe(ev router.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.flushHost()

	rec := Record{
		Event:      string(ev.Type),
		Submission: ev.Submission,
		Kind:       ev.Kind,
		Mutations:  ev.Mutations,
		OK:         ev.OK,
		Error:      ev.Error,
	}
	if ev.Type == router.EventRefused {
		rec.Policy = ev.Policy.String()
	}
	t.records = append(t.records, rec)
}

func (t *tracer) step(desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushHost()
	t.records = append(t.records, Record{Step: desc})
}

// sync pulls host operations not yet followed by an event.
func (t *tracer) sync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushHost()
}

func (t *tracer) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// stop ends recording and returns the trace.
func (t *tracer) stop() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushHost()
	t.stopped = true
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *tracer) flushHost() {
	if t.stopped {
		return
	}
	ops := t.host.Ops()
	for _, op := range ops[t.seen:] {
		t.records = append(t.records, Record{Host: op})
	}
	t.seen = len(ops)
}

type outcome struct {
	value string
	err   error
}

// sources hands out named single-value sources completed by emit steps.
// Every reactive unit waiting on a name receives the same outcome.
type sources struct {
	mu      sync.Mutex
	waiting map[string][]chan outcome
	count   int
}

func newSources() *sources {
	return &sources{waiting: make(map[string][]chan outcome)}
}

func (s *sources) source(name string) unit.Source[string] {
	return func(ctx context.Context) (string, error) {
		ch := make(chan outcome, 1)

		s.mu.Lock()
		s.waiting[name] = append(s.waiting[name], ch)
		s.count++
		s.mu.Unlock()

		select {
		case o := <-ch:
			return o.value, o.err
		case <-ctx.Done():
			s.drop(name, ch)
			return "", ctx.Err()
		}
	}
}

// emit completes every source waiting on name and returns how many there
// were.
func (s *sources) emit(name, value string, err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	waiting := s.waiting[name]
	delete(s.waiting, name)
	s.count -= len(waiting)
	for _, ch := range waiting {
		ch <- outcome{value: value, err: err}
	}
	return len(waiting)
}

func (s *sources) drop(name string, ch chan outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	waiting := s.waiting[name]
	for i, c := range waiting {
		if c == ch {
			s.waiting[name] = append(waiting[:i:i], waiting[i+1:]...)
			s.count--
			return
		}
	}
}

// blocked returns the number of sources waiting for an emit step.
func (s *sources) blocked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
