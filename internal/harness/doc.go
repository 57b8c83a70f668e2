// Package harness runs navigation scenarios against a live router and an
// in-memory host.
//
// # Scenario Format
//
// Scenarios are YAML documents, validated against an embedded CUE schema
// before they are decoded:
//
//	name: fifo_order
//	description: "Units run in submission order"
//	policy: postpone
//	run_token: run-fifo
//	initial_stack: [home]
//	steps:
//	  - call:
//	      label: a
//	      unit:
//	        simple:
//	          ops: [{show: settings}]
//	  - pause: true
//	  - call:
//	      label: b
//	      unit:
//	        reactive:
//	          source: login
//	          cases:
//	            ok: {simple: {ops: [{change_root: feed}]}}
//	  - resume: true
//	  - emit: {source: login, value: ok}
//	assertions:
//	  - type: trace_order
//	    events: ["executed a", "executed b"]
//	  - type: final_stack
//	    stack: [feed]
//	  - type: result
//	    label: b
//	    expect: "true"
//
// # Steps
//
//   - call: submit a labelled unit (simple, reactive, chain or none)
//   - cancel: cancel a call by label
//   - emit: complete a named reactive source with a value or a failure
//   - pause, resume: toggle the host's state-save flag
//   - hold, release: hold back and deliver change notifications
//   - external: pop the top screen outside the router
//   - detach, attach: stop and restart the worker
//
// # Assertion Types
//
//   - trace_contains: an event (optionally for a label) appears in the trace
//   - trace_order: records appear in the given order, e.g. "executed a"
//   - trace_count: an event appears exactly N times
//   - final_stack: the host stack after the last step
//   - result: a call's result ("true", "false", "pending", "false: CODE")
//
// # Deterministic Testing
//
// Each run uses a fixed run token and waits after every step until the
// router is idle, so the same scenario always yields the same trace. Traces
// are compared against golden files with Snapshot and RunWithGolden.
package harness
