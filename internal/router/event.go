package router

// EventType names a router event.
type EventType string

const (
	// EventSubmitted: a call was accepted and given a submission id.
	EventSubmitted EventType = "submitted"
	// EventEnqueued: a Simple unit was appended to the queue.
	EventEnqueued EventType = "enqueued"
	// EventExecuted: a queue entry's bodies ran in a mutation session.
	EventExecuted EventType = "executed"
	// EventResolved: a queue entry left the queue after running.
	EventResolved EventType = "resolved"
	// EventCancelled: a queue entry or pending reactive source was cancelled.
	EventCancelled EventType = "cancelled"
	// EventRefused: the host refused a mutation.
	EventRefused EventType = "refused"
	// EventInterrupted: a later interrupting unit pre-empted a submission's result.
	EventInterrupted EventType = "interrupted"
	// EventCompleted: a submission's handle resolved.
	EventCompleted EventType = "completed"
)

// Event describes one step of the worker. Events are delivered on the
// worker goroutine in Seq order; observers must not block or call back into
// the router synchronously.
type Event struct {
	Seq        int64
	Run        string
	Type       EventType
	Submission int64

	// Kind is set on submitted events.
	Kind string
	// Mutations is set on executed events.
	Mutations int
	// OK is set on resolved and completed events.
	OK bool
	// Policy is set on refused events.
	Policy StateLossPolicy
	// Error carries the failure text of executed, resolved and completed events.
	Error string
}

// Observer receives router events.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
