package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/navqueue/internal/canonical"
)

// Snapshot renders a result as canonical JSON lines: a header object, one
// object per trace record, and a final-state object. Every line is
// byte-stable across runs.
func Snapshot(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer

	header := map[string]any{
		"scenario": name,
		"run":      result.RunToken,
	}
	if err := writeLine(&buf, header); err != nil {
		return nil, err
	}

	for _, rec := range result.Trace {
		if err := writeLine(&buf, recordMap(rec)); err != nil {
			return nil, err
		}
	}

	final := map[string]any{
		"stack":   nonNil(result.Stack),
		"dialogs": nonNil(result.Dialogs),
		"results": result.Results,
	}
	if err := writeLine(&buf, map[string]any{"final": final}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeLine(buf *bytes.Buffer, v map[string]any) error {
	line, err := canonical.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return nil
}

// recordMap keeps only the fields meaningful for the record's kind, so
// zero values that matter (ok=false, mutations=0) still appear.
func recordMap(rec Record) map[string]any {
	switch {
	case rec.Step != "":
		return map[string]any{"step": rec.Step}
	case rec.Host != "":
		return map[string]any{"host": rec.Host}
	}

	m := map[string]any{"event": rec.Event}
	if rec.Label != "" {
		m["label"] = rec.Label
	}
	switch rec.Event {
	case "submitted":
		m["kind"] = rec.Kind
	case "executed":
		m["mutations"] = rec.Mutations
	case "resolved", "completed":
		m["ok"] = rec.OK
	case "refused":
		m["policy"] = rec.Policy
	}
	if rec.Error != "" {
		m["error"] = rec.Error
	}
	return m
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. It also fails the test if any
// assertion did not hold.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s: %s", scenario.Name, result.Summary())
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)

	return nil
}
