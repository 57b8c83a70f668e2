package router

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// The router keeps three: submission ids, queue-entry sequence numbers and
// event sequence numbers. None of them depend on wall time, so traces of the
// same scenario are identical across runs.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next value and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
