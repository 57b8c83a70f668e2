// Package router implements the navqueue scheduler.
//
// A Router accepts action units from any goroutine, serializes them, and
// runs them one at a time against a single navigator. Completion of a turn
// is detected indirectly: the navigator counts the stack mutations a unit
// performs, and the router waits for that many stack-change notifications
// from the host before resolving the submission's handle.
//
// ARCHITECTURE:
//
// Single-Worker Loop:
// All queue state lives on one worker goroutine started by Attach. Callers
// never touch the queue; Call, CallResponsive and Handle.Cancel post tasks
// to a mailbox that the worker drains between turns. This ensures:
// - FIFO execution in submission order
// - Mutation sessions never overlap
// - Interruption checks see a consistent queue
//
// Turn Flow:
// 1. The head entry is taken once the resume gate allows it (POSTPONE only)
// 2. navigator.StartSession(), unit bodies run, n = navigator.FinishSession()
// 3. n == 0 resolves the handle at once; otherwise the worker counts n
// stack-change notifications first
// 4. Host refusals (navigator.ErrStateLoss) are handled per StateLossPolicy
// 5. The head is popped and the next entry is considered
//
// Reactive and Chain units are decomposed into Simple queue entries that
// share the submission id of the original call. Their handles race against
// later interrupting Simple submissions: the race decides only the outcome
// reported to the caller, the decomposed work still runs.
package router
