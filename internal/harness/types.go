package harness

import (
	"fmt"
	"strings"
)

// Record is one line of a scenario trace. Exactly one of Step, Host and
// Event is set.
type Record struct {
	// Step marks the start of a scenario step, e.g. "call a" or "pause".
	Step string `json:"step,omitempty"`

	// Host is an accepted host mutation or lifecycle transition.
	Host string `json:"host,omitempty"`

	// Event is a router event type; the fields below describe it.
	Event      string `json:"event,omitempty"`
	Submission int64  `json:"-"`
	Label      string `json:"label,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Mutations  int    `json:"mutations,omitempty"`
	OK         bool   `json:"ok,omitempty"`
	Policy     string `json:"policy,omitempty"`
	Error      string `json:"error,omitempty"`
}

// String renders r in the "event label" form trace_order assertions use.
func (r Record) String() string {
	switch {
	case r.Step != "":
		return "step " + r.Step
	case r.Host != "":
		return "host " + r.Host
	case r.Label != "":
		return r.Event + " " + r.Label
	default:
		return r.Event
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// RunToken is the router's run token.
	RunToken string `json:"run_token"`

	// Trace holds step markers, host operations and router events in the
	// order they happened.
	Trace []Record `json:"trace"`

	// Stack and Dialogs are the host's final state.
	Stack   []string `json:"stack"`
	Dialogs []string `json:"dialogs"`

	// Results maps each call label to its result text.
	Results map[string]string `json:"results"`

	// Labels lists call labels in submission order.
	Labels []string `json:"labels"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []Record{},
		Results: make(map[string]string),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Summary renders the failures, one per line.
func (r *Result) Summary() string {
	if r.Pass {
		return "pass"
	}
	return fmt.Sprintf("%d failure(s):\n  %s", len(r.Errors), strings.Join(r.Errors, "\n  "))
}
