package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/navqueue/internal/router"
)

// Scenario defines a router scenario: a host setup, a sequence of steps
// acting on the router and the host, and assertions on the resulting trace
// and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the state-loss policy: postpone (default), ignore or error.
	Policy string `yaml:"policy,omitempty"`

	// RunToken is an optional fixed run token.
	// If empty, testutil.DefaultRunToken is used.
	RunToken string `yaml:"run_token,omitempty"`

	// InitialStack seeds the host stack, bottom first.
	InitialStack []string `yaml:"initial_stack,omitempty"`

	// StartPaused starts the host refusing mutations.
	StartPaused bool `yaml:"start_paused,omitempty"`

	// Steps run in order. The harness waits for the router to settle after
	// each one.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one harness action. Exactly one field is set.
type Step struct {
	// Call submits a unit with CallResponsive.
	Call *CallStep `yaml:"call,omitempty"`

	// Cancel cancels the handle of the call with this label.
	Cancel string `yaml:"cancel,omitempty"`

	// Emit completes a named reactive source.
	Emit *EmitStep `yaml:"emit,omitempty"`

	// Pause and Resume flip the host's state-save flag.
	Pause  bool `yaml:"pause,omitempty"`
	Resume bool `yaml:"resume,omitempty"`

	// Hold keeps change notifications back; Release delivers n of them
	// (-1 for all).
	Hold    bool `yaml:"hold,omitempty"`
	Release *int `yaml:"release,omitempty"`

	// External pops the top screen outside the router.
	External bool `yaml:"external,omitempty"`

	// Detach and Attach stop and restart the router worker.
	Detach bool `yaml:"detach,omitempty"`
	Attach bool `yaml:"attach,omitempty"`
}

// CallStep submits a labelled unit.
type CallStep struct {
	Label string   `yaml:"label"`
	Unit  UnitSpec `yaml:"unit"`
}

// EmitStep delivers a value, or a failure, to every reactive unit waiting
// on Source.
type EmitStep struct {
	Source string `yaml:"source"`
	Value  string `yaml:"value,omitempty"`
	Fail   string `yaml:"fail,omitempty"`
}

// UnitSpec describes an action unit. Exactly one field is set.
type UnitSpec struct {
	Simple   *SimpleSpec   `yaml:"simple,omitempty"`
	Reactive *ReactiveSpec `yaml:"reactive,omitempty"`
	Chain    []UnitSpec    `yaml:"chain,omitempty"`

	// None builds a nil unit.
	None bool `yaml:"none,omitempty"`
}

// SimpleSpec describes a Simple unit. Each op becomes one body.
type SimpleSpec struct {
	// Interrupting defaults to true.
	Interrupting *bool    `yaml:"interrupting,omitempty"`
	Ops          []OpSpec `yaml:"ops"`
}

// OpSpec is one navigator operation. Exactly one operation field is set.
type OpSpec struct {
	Show       string `yaml:"show,omitempty"`
	Close      bool   `yaml:"close,omitempty"`
	Replace    string `yaml:"replace,omitempty"`
	Clear      bool   `yaml:"clear,omitempty"`
	ChangeRoot string `yaml:"change_root,omitempty"`
	CloseUntil string `yaml:"close_until,omitempty"`
	Inclusive  bool   `yaml:"inclusive,omitempty"`
	Dialog     string `yaml:"dialog,omitempty"`

	// Fail makes the body return an error with this text.
	Fail string `yaml:"fail,omitempty"`
}

// ReactiveSpec describes a Reactive unit waiting on a named source. Values
// missing from Cases map to nothing.
type ReactiveSpec struct {
	Source string              `yaml:"source"`
	Cases  map[string]UnitSpec `yaml:"cases,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event and Label select trace records for trace_contains and
	// trace_count.
	Event string `yaml:"event,omitempty"`
	Label string `yaml:"label,omitempty"`

	// Events lists "event label" pairs for trace_order.
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of matches for trace_count.
	Count int `yaml:"count,omitempty"`

	// Stack is the expected final stack for final_stack.
	Stack []string `yaml:"stack,omitempty"`

	// Expect is the expected result text for result: "true", "false",
	// "pending" or "false: <reason>".
	Expect string `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalStack    = "final_stack"
	AssertResult        = "result"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, fails the schema, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	// Strict field validation catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks the constraints the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Policy != "" {
		if _, err := router.ParsePolicy(s.Policy); err != nil {
			return err
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		switch {
		case step.Call != nil:
			if step.Call.Label == "" {
				return fmt.Errorf("steps[%d].call: label is required", i)
			}
			if labels[step.Call.Label] {
				return fmt.Errorf("steps[%d].call: duplicate label %q", i, step.Call.Label)
			}
			labels[step.Call.Label] = true
			if err := validateUnit(fmt.Sprintf("steps[%d].call.unit", i), &step.Call.Unit); err != nil {
				return err
			}
		case step.Cancel != "":
			if !labels[step.Cancel] {
				return fmt.Errorf("steps[%d].cancel: unknown label %q", i, step.Cancel)
			}
		case step.Emit != nil:
			if step.Emit.Source == "" {
				return fmt.Errorf("steps[%d].emit: source is required", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], labels); err != nil {
			return err
		}
	}

	return nil
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Call != nil, s.Cancel != "", s.Emit != nil,
		s.Pause, s.Resume, s.Hold, s.Release != nil,
		s.External, s.Detach, s.Attach,
	} {
		if set {
			n++
		}
	}
	return n
}

func validateUnit(path string, u *UnitSpec) error {
	n := 0
	for _, set := range []bool{u.Simple != nil, u.Reactive != nil, u.Chain != nil, u.None} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%s: exactly one of simple, reactive, chain, none is required", path)
	}

	switch {
	case u.Simple != nil:
		if len(u.Simple.Ops) == 0 {
			return fmt.Errorf("%s.simple: ops list is required and must be non-empty", path)
		}
		for i, op := range u.Simple.Ops {
			if op.count() != 1 {
				return fmt.Errorf("%s.simple.ops[%d]: exactly one operation is required", path, i)
			}
			if op.Inclusive && op.CloseUntil == "" {
				return fmt.Errorf("%s.simple.ops[%d]: inclusive requires close_until", path, i)
			}
		}
	case u.Reactive != nil:
		if u.Reactive.Source == "" {
			return fmt.Errorf("%s.reactive: source is required", path)
		}
		for value, c := range u.Reactive.Cases {
			if err := validateUnit(fmt.Sprintf("%s.reactive.cases[%s]", path, value), &c); err != nil {
				return err
			}
		}
	case u.Chain != nil:
		for i := range u.Chain {
			if err := validateUnit(fmt.Sprintf("%s.chain[%d]", path, i), &u.Chain[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o OpSpec) count() int {
	n := 0
	for _, set := range []bool{
		o.Show != "", o.Close, o.Replace != "", o.Clear,
		o.ChangeRoot != "", o.CloseUntil != "", o.Dialog != "", o.Fail != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, labels map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalStack:
	case AssertResult:
		if !labels[a.Label] {
			return fmt.Errorf("assertions[%d]: unknown label %q", index, a.Label)
		}
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for result", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
