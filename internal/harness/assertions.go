package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []Record
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, rec := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, rec)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalStack:
			err = assertFinalStack(result, a)
		case AssertResult:
			err = assertResult(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// matches reports whether rec is an event of the given type, and for the
// given label when label is set.
func matches(rec Record, event, label string) bool {
	return rec.Event == event && (label == "" || rec.Label == label)
}

// assertTraceContains checks that the trace contains a matching event.
func assertTraceContains(trace []Record, a Assertion) error {
	for _, rec := range trace {
		if matches(rec, a.Event, a.Label) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: strings.TrimSpace(a.Event + " " + a.Label),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed records appear in order.
// Intervening records are allowed. Each entry is matched against
// Record.String, e.g. "executed a" or "host push settings".
func assertTraceOrder(trace []Record, a Assertion) error {
	next := 0
	for _, rec := range trace {
		if next < len(a.Events) && rec.String() == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	actual := fmt.Sprintf("%q not found after %q", a.Events[next], a.Events[:next])
	if !slices.ContainsFunc(trace, func(r Record) bool { return r.String() == a.Events[next] }) {
		actual = fmt.Sprintf("missing %q", a.Events[next])
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("records in order: %v", a.Events),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []Record, a Assertion) error {
	count := 0
	for _, rec := range trace {
		if matches(rec, a.Event, a.Label) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, strings.TrimSpace(a.Event+" "+a.Label)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalStack(result *Result, a Assertion) error {
	want := a.Stack
	if want == nil {
		want = []string{}
	}
	got := result.Stack
	if got == nil {
		got = []string{}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalStack,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertResult(result *Result, a Assertion) error {
	got, ok := result.Results[a.Label]
	if !ok {
		got = "no such call"
	}
	if got != a.Expect {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("%s resolves %s", a.Label, a.Expect),
			Actual:   got,
		}
	}
	return nil
}
