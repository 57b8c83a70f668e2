package harness

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navqueue/internal/router"
	"github.com/roach88/navqueue/internal/testutil"
)

func runScenario(t *testing.T, s *Scenario, opts ...Option) *Result {
	t.Helper()
	result, err := Run(context.Background(), s, opts...)
	require.NoError(t, err)
	return result
}

func parse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_DefaultRunToken(t *testing.T) {
	result := runScenario(t, parse(t, minimal))

	assert.True(t, result.Pass, result.Summary())
	assert.Equal(t, testutil.DefaultRunToken, result.RunToken)
	assert.Equal(t, []string{"settings"}, result.Stack)
	assert.Equal(t, map[string]string{"a": "true"}, result.Results)
	assert.Equal(t, []string{"a"}, result.Labels)
}

func TestRun_NilUnitAndUnmatchedReactive(t *testing.T) {
	result := runScenario(t, parse(t, `
name: nothing
description: "units that do nothing resolve true"
steps:
  - call: {label: none, unit: {none: true}}
  - call:
      label: r
      unit:
        reactive:
          source: s
          cases:
            go: {simple: {ops: [{show: x}]}}
  - emit: {source: s, value: stay}
  - call: {label: empty, unit: {chain: []}}
assertions:
  - type: trace_count
    event: executed
    count: 0
  - type: result
    label: r
    expect: "true"
`))

	assert.True(t, result.Pass, result.Summary())
	assert.Equal(t, "true", result.Results["none"])
	assert.Equal(t, "true", result.Results["empty"])
	assert.Empty(t, result.Stack)
}

func TestRun_SourceFailure(t *testing.T) {
	result := runScenario(t, parse(t, `
name: source_failure
description: "a failing source resolves its call with SOURCE_FAILED"
steps:
  - call: {label: r, unit: {reactive: {source: s}}}
  - emit: {source: s, fail: offline}
assertions:
  - type: result
    label: r
    expect: "false: SOURCE_FAILED"
`))
	assert.True(t, result.Pass, result.Summary())
}

func TestRun_UnitFailureDiscardsStaleNotifications(t *testing.T) {
	result := runScenario(t, parse(t, `
name: unit_failure
description: "a body error after one mutation fails the unit; the next unit still counts correctly"
initial_stack: [home]
steps:
  - call:
      label: bad
      unit: {simple: {ops: [{show: half}, {fail: broken}]}}
  - call:
      label: good
      unit: {simple: {ops: [{show: next}]}}
assertions:
  - type: result
    label: bad
    expect: "false: UNIT_FAILED"
  - type: result
    label: good
    expect: "true"
  - type: final_stack
    stack: [home, half, next]
`))
	assert.True(t, result.Pass, result.Summary())
}

func TestRun_ExternalChangeDuringTurn(t *testing.T) {
	result := runScenario(t, parse(t, `
name: external
description: "a notification from an external change counts toward the awaiting turn"
initial_stack: [home, detail]
steps:
  - hold: true
  - call: {label: a, unit: {simple: {ops: [{show: settings}]}}}
  - external: true
  - release: 1
assertions:
  - type: trace_order
    events: ["executed a", "host external", "resolved a"]
  - type: final_stack
    stack: [home, detail]
`))
	assert.True(t, result.Pass, result.Summary())
}

func TestRun_DetachResolvesPendingFalse(t *testing.T) {
	result := runScenario(t, parse(t, `
name: detach
description: "detach resolves the running and queued calls false; attach accepts new work"
initial_stack: [home]
steps:
  - hold: true
  - call: {label: a, unit: {simple: {ops: [{show: one}]}}}
  - call: {label: b, unit: {simple: {ops: [{show: two}]}}}
  - detach: true
  - release: -1
  - attach: true
  - call: {label: c, unit: {simple: {ops: [{show: three}]}}}
assertions:
  - type: result
    label: a
    expect: "false"
  - type: result
    label: b
    expect: "false"
  - type: result
    label: c
    expect: "true"
  - type: trace_contains
    event: cancelled
    label: b
`))
	assert.True(t, result.Pass, result.Summary())
	assert.Equal(t, []string{"home", "one", "three"}, result.Stack)
}

func TestRun_DialogsAndCloseUntil(t *testing.T) {
	result := runScenario(t, parse(t, `
name: dialogs
description: "dialogs count no mutations; close_until pops back"
initial_stack: [home, list, detail, edit]
steps:
  - call:
      label: toast
      unit: {simple: {interrupting: false, ops: [{dialog: toast}]}}
  - call:
      label: back
      unit: {simple: {ops: [{close_until: list}]}}
  - call:
      label: gone
      unit: {simple: {ops: [{close_until: nowhere}]}}
  - call:
      label: swap
      unit: {simple: {ops: [{replace: grid}, {dialog: hint}]}}
assertions:
  - type: final_stack
    stack: [home, grid]
`))
	assert.True(t, result.Pass, result.Summary())
	assert.Equal(t, []string{"hint"}, result.Dialogs)

	executed := map[string]int{}
	for _, rec := range result.Trace {
		if rec.Event == "executed" {
			executed[rec.Label] = rec.Mutations
		}
	}
	assert.Equal(t, map[string]int{"toast": 0, "back": 1, "gone": 0, "swap": 2}, executed)
}

func TestRun_EmitWithoutWaiter(t *testing.T) {
	_, err := Run(context.Background(), parse(t, `
name: stray_emit
description: "emitting to a source nobody waits on is a scenario error"
steps:
  - emit: {source: nobody, value: x}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `steps[0]: emit: no reactive unit waiting on source "nobody"`)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	result := runScenario(t, parse(t, `
name: failing
description: "assertions that do not hold fail the result"
steps:
  - call: {label: a, unit: {simple: {ops: [{show: x}]}}}
assertions:
  - type: final_stack
    stack: [y]
  - type: result
    label: a
    expect: "false"
`))
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Summary(), "2 failure(s)")
}

func TestRun_ObserverAndMetrics(t *testing.T) {
	var events []router.Event
	reg := prometheus.NewRegistry()
	m := router.NewMetrics(reg)

	result := runScenario(t, parse(t, minimal),
		WithObserver(router.ObserverFunc(func(ev router.Event) { events = append(events, ev) })),
		WithMetrics(m),
	)
	require.True(t, result.Pass)

	require.NotEmpty(t, events)
	assert.Equal(t, router.EventSubmitted, events[0].Type)
	assert.Equal(t, testutil.DefaultRunToken, events[0].Run)

	count, err := prom.GatherAndCount(reg, "navqueue_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
