package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTrace = []Record{
	{Step: "call a"},
	{Event: "submitted", Label: "a", Kind: "simple"},
	{Host: "push x"},
	{Event: "executed", Label: "a", Mutations: 1},
	{Step: "call b"},
	{Event: "submitted", Label: "b", Kind: "simple"},
	{Event: "executed", Label: "b"},
	{Event: "resolved", Label: "a", OK: true},
}

func TestAssertTraceContains(t *testing.T) {
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Event: "executed", Label: "b"}))
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Event: "resolved"}))

	err := assertTraceContains(sampleTrace, Assertion{Event: "resolved", Label: "b"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "resolved b", ae.Expected)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[3] host push x")
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantErr string
	}{
		{"in order with gaps", []string{"step call a", "host push x", "resolved a"}, ""},
		{"single", []string{"executed b"}, ""},
		{"wrong order", []string{"executed b", "executed a"}, `"executed a" not found after`},
		{"missing", []string{"executed a", "cancelled a"}, `missing "cancelled a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace, Assertion{Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: "submitted", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: "submitted", Label: "a", Count: 1}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: "refused", Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Event: "executed", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalStackAndResult(t *testing.T) {
	result := NewResult()
	result.Stack = []string{"home"}
	result.Results["a"] = "true"

	assert.NoError(t, assertFinalStack(result, Assertion{Stack: []string{"home"}}))
	assert.Error(t, assertFinalStack(result, Assertion{Stack: []string{}}))

	empty := NewResult()
	assert.NoError(t, assertFinalStack(empty, Assertion{}), "nil and empty stacks are equal")

	assert.NoError(t, assertResult(result, Assertion{Label: "a", Expect: "true"}))
	err := assertResult(result, Assertion{Label: "b", Expect: "true"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such call")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace
	result.Results["a"] = "true"

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "executed", Label: "a"},
		{Type: AssertResult, Label: "a", Expect: "false"},
		{Type: "bogus"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[1]")
	assert.Contains(t, failures[1], `unknown assertion type "bogus"`)
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "step pause", Record{Step: "pause"}.String())
	assert.Equal(t, "host pop", Record{Host: "pop"}.String())
	assert.Equal(t, "executed a", Record{Event: "executed", Label: "a"}.String())
	assert.Equal(t, "cancelled", Record{Event: "cancelled"}.String())
}
