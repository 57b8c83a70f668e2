// Package simhost is an in-memory host: a presentation stack that reports
// every mutation on a change stream and refuses mutations while paused.
//
// It stands in for a real UI toolkit in tests, scenarios and the CLI.
package simhost

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/navqueue/internal/navigator"
)

// changeBuffer is the capacity of the change stream. Notifications beyond
// it are delivered from a goroutine so mutations never block.
const changeBuffer = 256

// Host is an in-memory navigator.Host. It also implements router.Lifecycle
// and router.ResumeSignal.
type Host struct {
	mu      sync.Mutex
	entries []navigator.Entry
	dialogs []navigator.Entry
	ops     []string
	paused  bool
	held    bool
	pending int

	changes chan struct{}
	resume  chan bool
}

// Option configures a Host.
type Option func(*Host)

// WithStack seeds the stack with tags, bottom first.
func WithStack(tags ...string) Option {
	return func(h *Host) {
		for _, t := range tags {
			h.entries = append(h.entries, navigator.Entry{Tag: t, Screen: t})
		}
		h.relayer()
	}
}

// StartPaused starts the host in the paused state.
func StartPaused() Option {
	return func(h *Host) { h.paused = true }
}

// HoldNotifications starts the host with notifications held back until
// Release.
func HoldNotifications() Option {
	return func(h *Host) { h.held = true }
}

// New creates a resumed host with an empty stack.
func New(opts ...Option) *Host {
	h := &Host{
		changes: make(chan struct{}, changeBuffer),
		resume:  make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StackChanges implements router.Lifecycle.
func (h *Host) StackChanges() <-chan struct{} {
	return h.changes
}

// WatchResume implements router.ResumeSignal. The channel always holds the
// latest state; intermediate transitions may be coalesced.
func (h *Host) WatchResume() (bool, <-chan bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.paused, h.resume
}

// Pause makes the host refuse mutations.
func (h *Host) Pause() {
	h.setPaused(true)
}

// Resume lets the host accept mutations again.
func (h *Host) Resume() {
	h.setPaused(false)
}

func (h *Host) setPaused(paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.paused == paused {
		return
	}
	h.paused = paused
	h.ops = append(h.ops, map[bool]string{true: "pause", false: "resume"}[paused])

	select {
	case <-h.resume:
	default:
	}
	h.resume <- !paused
}

// Paused reports whether the host refuses mutations.
func (h *Host) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Hold keeps further notifications back until Release.
func (h *Host) Hold() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.held = true
}

// Release delivers up to n held notifications, or all of them if n < 0,
// and stops holding. It returns the number delivered.
func (h *Host) Release(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n < 0 || n > h.pending {
		n = h.pending
	}
	h.pending -= n
	if h.pending == 0 {
		h.held = false
	}
	for i := 0; i < n; i++ {
		h.deliver()
	}
	return n
}

// Held returns the number of notifications held back.
func (h *Host) Held() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

// Emit simulates a stack change made outside the router, for example the
// user pressing back. It pops the top entry when the stack is not empty.
func (h *Host) Emit() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) > 0 {
		h.entries = h.entries[:len(h.entries)-1]
		h.relayer()
	}
	h.ops = append(h.ops, "external")
	h.notify()
}

// Push implements navigator.Host.
func (h *Host) Push(tag string, screen any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check("push " + tag); err != nil {
		return err
	}
	h.entries = append(h.entries, navigator.Entry{Tag: tag, Screen: screen})
	h.relayer()
	h.notify()
	return nil
}

// Pop implements navigator.Host.
func (h *Host) Pop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check("pop"); err != nil {
		return err
	}
	if len(h.entries) == 0 {
		return fmt.Errorf("simhost: pop: empty stack")
	}
	h.entries = h.entries[:len(h.entries)-1]
	h.dialogs = nil
	h.relayer()
	h.notify()
	return nil
}

// PopTo implements navigator.Host.
func (h *Host) PopTo(tag string, inclusive bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	op := "pop_to " + tag
	if inclusive {
		op += " inclusive"
	}
	if err := h.check(op); err != nil {
		return err
	}

	i := h.index(tag)
	if i < 0 {
		return fmt.Errorf("simhost: pop to %s: not on stack", tag)
	}
	if inclusive {
		h.entries = h.entries[:i]
	} else {
		h.entries = h.entries[:i+1]
	}
	h.dialogs = nil
	h.relayer()
	h.notify()
	return nil
}

// PopAll implements navigator.Host.
func (h *Host) PopAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check("pop_all"); err != nil {
		return err
	}
	h.entries = nil
	h.dialogs = nil
	h.notify()
	return nil
}

// ShowDialog implements navigator.Host. Dialogs sit above the stack, are
// dismissed by the next pop and never produce notifications.
func (h *Host) ShowDialog(tag string, screen any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check("dialog " + tag); err != nil {
		return err
	}
	h.dialogs = append(h.dialogs, navigator.Entry{Tag: tag, Screen: screen, Visible: true})
	return nil
}

// Depth implements navigator.Host.
func (h *Host) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Find implements navigator.Host.
func (h *Host) Find(tag string) (navigator.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, d := range h.dialogs {
		if d.Tag == tag {
			return d, true
		}
	}
	if i := h.index(tag); i >= 0 {
		return h.entries[i], true
	}
	return navigator.Entry{}, false
}

// Entries implements navigator.Host.
func (h *Host) Entries() []navigator.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]navigator.Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Tags returns the stack tags, bottom first.
func (h *Host) Tags() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	tags := make([]string, len(h.entries))
	for i, e := range h.entries {
		tags[i] = e.Tag
	}
	return tags
}

// Dialogs returns the tags of shown dialogs.
func (h *Host) Dialogs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	tags := make([]string, len(h.dialogs))
	for i, d := range h.dialogs {
		tags[i] = d.Tag
	}
	return tags
}

// Ops returns the log of accepted mutations and lifecycle transitions.
func (h *Host) Ops() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.ops))
	copy(out, h.ops)
	return out
}

// Undelivered returns the number of change and resume notifications
// sent but not yet received.
func (h *Host) Undelivered() int {
	return len(h.changes) + len(h.resume)
}

// String renders the stack as "[a b c]".
func (h *Host) String() string {
	return "[" + strings.Join(h.Tags(), " ") + "]"
}

// check records op or refuses it while paused. Caller holds mu.
func (h *Host) check(op string) error {
	if h.paused {
		return fmt.Errorf("simhost: %s: %w", op, navigator.ErrStateLoss)
	}
	h.ops = append(h.ops, op)
	return nil
}

// index returns the position of the topmost entry tagged tag, or -1.
func (h *Host) index(tag string) int {
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Tag == tag {
			return i
		}
	}
	return -1
}

// relayer marks the top entry visible. Caller holds mu.
func (h *Host) relayer() {
	for i := range h.entries {
		h.entries[i].Visible = i == len(h.entries)-1
	}
}

// notify emits or holds one change notification. Caller holds mu.
func (h *Host) notify() {
	if h.held {
		h.pending++
		return
	}
	h.deliver()
}

func (h *Host) deliver() {
	select {
	case h.changes <- struct{}{}:
	default:
		go func() { h.changes <- struct{}{} }()
	}
}
