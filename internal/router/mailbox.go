package router

import "sync"

// task is a unit of work executed on the worker goroutine.
type task func()

// mailbox is a thread-safe FIFO of tasks for the worker.
//
// It is unbounded so that submitting never blocks the caller, whatever the
// worker is doing. The signal channel (buffered, size 1) lets the worker
// wait in a select next to its other event sources.
type mailbox struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		tasks:  make([]task, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds t to the back of the mailbox.
// Returns false if the mailbox is closed.
func (m *mailbox) Enqueue(t task) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.tasks = append(m.tasks, t)

	select {
	case m.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front task without blocking.
func (m *mailbox) TryDequeue() (task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tasks) == 0 {
		return nil, false
	}

	t := m.tasks[0]
	m.tasks[0] = nil

	if len(m.tasks) == 1 {
		m.tasks = m.tasks[:0]
	} else {
		m.tasks = m.tasks[1:]
	}

	return t, true
}

// Wait returns a channel that signals when tasks may be available.
// It is closed by Close.
func (m *mailbox) Wait() <-chan struct{} {
	return m.signal
}

// Len returns the number of queued tasks.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Close rejects further tasks. Tasks already queued can still be dequeued.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	close(m.signal)
}
