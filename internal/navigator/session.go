// Package navigator holds the host-capability side of navigation: the only
// code allowed to mutate the host's presentation stack.
//
// Every navigator method that mutates the stack calls Session.Mark once per
// logical mutation it performs. The router brackets each execution turn with
// StartSession and FinishSession and waits for that many stack-change
// notifications from the host before reporting the turn as carried out.
package navigator

import "errors"

// ErrStateLoss is returned (wrapped) by hosts that refuse a mutation because
// they are not in an active state, for example after saving their state.
var ErrStateLoss = errors.New("navigator: host refused mutation after state save")

// Sessioner is the part of a navigator the router drives.
type Sessioner interface {
	StartSession()
	FinishSession() int
}

// Session counts mutations performed during one execution turn. Embed it in
// a navigator and call Mark from every stack-mutating method.
//
// Session is not safe for concurrent use; the router only touches it from
// its worker goroutine, and sessions never nest.
type Session struct {
	count int
}

// Mark records one mutation of the presentation stack.
func (s *Session) Mark() {
	s.count++
}

// StartSession resets the counter.
func (s *Session) StartSession() {
	s.count = 0
}

// FinishSession returns the number of mutations since StartSession and
// resets the counter.
func (s *Session) FinishSession() int {
	n := s.count
	s.count = 0
	return n
}
