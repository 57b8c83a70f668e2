// Package unit describes navigational work as composable action units.
//
// A Unit is one of three kinds:
//
//   - Simple: an ordered list of bodies run against the navigator in one turn
//   - Reactive: a single-value Source plus a mapper from its value to the next unit
//   - Chain: units run one after another, stopping at the first one not processed
//
// Units are inert descriptions. Nothing touches the host until a router
// schedules the unit and runs it on its worker goroutine.
package unit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Kind identifies the variant of a Unit.
type Kind int

const (
	// KindSimple is an ordered sequence of navigator bodies.
	KindSimple Kind = iota + 1
	// KindReactive waits for a single value before deciding what to do.
	KindReactive
	// KindChain runs sub-units sequentially.
	KindChain
)

// String returns the lowercase kind name used in logs and journals.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindReactive:
		return "reactive"
	case KindChain:
		return "chain"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Unit is the closed set of action units over navigator type N.
// Only this package can add variants.
type Unit[N any] interface {
	Kind() Kind
	sealed()
}

// Body is one step of a Simple unit. It runs on the router's worker
// goroutine and must not block.
type Body[N any] func(nav N) error

// Simple is an ordered sequence of bodies executed in a single mutation
// session.
type Simple[N any] struct {
	interrupting bool
	bodies       []Body[N]
	err          error
}

// NewSimple wraps body as a one-step Simple unit.
func NewSimple[N any](interrupting bool, body Body[N]) *Simple[N] {
	s := &Simple[N]{interrupting: interrupting}
	if body != nil {
		s.bodies = []Body[N]{body}
	}
	return s
}

// Invalid returns a Simple that could not be built. Routers reject it when
// it is submitted; run anyway, it fails with err.
func Invalid[N any](err error) *Simple[N] {
	return &Simple[N]{interrupting: true, err: err}
}

// Kind implements Unit.
func (s *Simple[N]) Kind() Kind { return KindSimple }

func (s *Simple[N]) sealed() {}

// Interrupting reports whether queueing s pre-empts the reported outcome of
// earlier reactive and chain submissions.
func (s *Simple[N]) Interrupting() bool { return s.interrupting }

// Len returns the number of bodies.
func (s *Simple[N]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bodies)
}

// Plus returns a unit that runs the bodies of s followed by those of other.
// The result keeps the interrupting flag of s. Neither operand is modified.
// A nil s yields a copy of other; both nil yields nil.
func (s *Simple[N]) Plus(other *Simple[N]) *Simple[N] {
	if s == nil {
		if other == nil {
			return nil
		}
		return other.Plus(nil)
	}
	out := &Simple[N]{
		interrupting: s.interrupting,
		bodies:       make([]Body[N], 0, len(s.bodies)+other.Len()),
		err:          s.err,
	}
	out.bodies = append(out.bodies, s.bodies...)
	if other != nil {
		out.bodies = append(out.bodies, other.bodies...)
		if out.err == nil {
			out.err = other.err
		}
	}
	return out
}

// Invoke runs every body against nav in order, stopping at the first error.
func (s *Simple[N]) Invoke(nav N) error {
	if s.err != nil {
		return s.err
	}
	for i, body := range s.bodies {
		if err := body(nav); err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
	}
	return nil
}

// ErrNoValue is returned by a Source that finished without producing a value.
var ErrNoValue = errors.New("unit: source completed without a value")

// Source produces exactly one value or fails. It is called once, off the
// router's worker goroutine, and should return promptly when ctx is done.
type Source[T any] func(ctx context.Context) (T, error)

// Just returns a Source that yields v immediately.
func Just[T any](v T) Source[T] {
	return func(context.Context) (T, error) { return v, nil }
}

// Fail returns a Source that fails with err.
func Fail[T any](err error) Source[T] {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// FromChan returns a Source that yields the first value received on ch.
func FromChan[T any](ch <-chan T) Source[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		select {
		case v, ok := <-ch:
			if !ok {
				return zero, ErrNoValue
			}
			return v, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Resolver is the type-erased view of a Reactive unit that the router
// dispatches on.
type Resolver[N any] interface {
	Unit[N]
	Resolve(ctx context.Context) (Unit[N], error)
}

// Reactive defers the choice of work until its source emits.
type Reactive[T, N any] struct {
	source Source[T]
	mapper func(T) Unit[N]
}

// NewReactive builds a Reactive unit. mapper may return nil to mean
// "nothing to do".
func NewReactive[T, N any](source Source[T], mapper func(T) Unit[N]) *Reactive[T, N] {
	return &Reactive[T, N]{source: source, mapper: mapper}
}

// Kind implements Unit.
func (r *Reactive[T, N]) Kind() Kind { return KindReactive }

func (r *Reactive[T, N]) sealed() {}

// Resolve waits for the source and maps its value. A nil unit with a nil
// error means the mapper chose to do nothing.
func (r *Reactive[T, N]) Resolve(ctx context.Context) (Unit[N], error) {
	v, err := r.source(ctx)
	if err != nil {
		return nil, err
	}
	next := r.mapper(v)
	if IsNil[N](next) {
		return nil, nil
	}
	return next, nil
}

// Chain runs its units in order and stops at the first one that is not
// processed.
type Chain[N any] struct {
	units []Unit[N]
}

// NewChain builds a Chain from units, skipping nil entries.
func NewChain[N any](units ...Unit[N]) *Chain[N] {
	c := &Chain[N]{units: make([]Unit[N], 0, len(units))}
	for _, u := range units {
		if !IsNil[N](u) {
			c.units = append(c.units, u)
		}
	}
	return c
}

// Kind implements Unit.
func (c *Chain[N]) Kind() Kind { return KindChain }

func (c *Chain[N]) sealed() {}

// Units returns a copy of the chain's sub-units.
func (c *Chain[N]) Units() []Unit[N] {
	out := make([]Unit[N], len(c.units))
	copy(out, c.units)
	return out
}

// Plus returns a chain running the units of c followed by those of other.
func (c *Chain[N]) Plus(other *Chain[N]) *Chain[N] {
	if c == nil {
		if other == nil {
			return nil
		}
		return other.Plus(nil)
	}
	out := &Chain[N]{units: make([]Unit[N], 0, len(c.units))}
	out.units = append(out.units, c.units...)
	if other != nil {
		out.units = append(out.units, other.units...)
	}
	return out
}

// BuildErr returns the error an Invalid unit carries, looking through
// Plus and into chain members. Reactive units are decided later and report
// nil.
func BuildErr[N any](u Unit[N]) error {
	switch v := u.(type) {
	case *Simple[N]:
		if v != nil {
			return v.err
		}
	case *Chain[N]:
		if v == nil {
			return nil
		}
		for _, m := range v.units {
			if err := BuildErr[N](m); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsNil reports whether u is nil or a typed nil pointer.
func IsNil[N any](u Unit[N]) bool {
	if u == nil {
		return true
	}
	v := reflect.ValueOf(u)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
