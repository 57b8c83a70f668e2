package unit

// Builder gives application code constructors for units without exposing
// the variants directly. Providers embed it and add domain-specific units.
//
// Building has no side effects: the navigator is only handed out so that
// providers can keep a reference for queries made inside bodies.
type Builder[N any] struct {
	nav N
}

// NewBuilder returns a Builder bound to nav.
func NewBuilder[N any](nav N) Builder[N] {
	return Builder[N]{nav: nav}
}

// Navigator returns the navigator the builder was created with.
func (b Builder[N]) Navigator() N {
	return b.nav
}

// Simple wraps body as an interrupting Simple unit.
func (b Builder[N]) Simple(body Body[N]) *Simple[N] {
	return NewSimple(true, body)
}

// SimpleWith wraps body as a Simple unit with an explicit interrupting flag.
func (b Builder[N]) SimpleWith(interrupting bool, body Body[N]) *Simple[N] {
	return NewSimple(interrupting, body)
}

// Invalid stands in for a unit that could not be built because of err.
func (b Builder[N]) Invalid(err error) *Simple[N] {
	return Invalid[N](err)
}

// Chain runs units sequentially.
func (b Builder[N]) Chain(units ...Unit[N]) *Chain[N] {
	return NewChain(units...)
}

// When builds a Reactive unit whose mapper picks a Simple unit (or nil for
// nothing) once source emits. Go methods cannot carry type parameters, so
// this lives beside Builder rather than on it.
func When[T, N any](_ Builder[N], source Source[T], pick func(T) *Simple[N]) *Reactive[T, N] {
	return NewReactive(source, func(v T) Unit[N] {
		s := pick(v)
		if s == nil {
			return nil
		}
		return s
	})
}
