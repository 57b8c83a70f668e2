package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const pushScenario = `name: push_settings
description: "One call pushes a screen"
run_token: run-cli
initial_stack: [home]
steps:
  - call:
      label: a
      unit:
        simple:
          ops: [{show: settings}]
assertions:
  - type: final_stack
    stack: [home, settings]
  - type: result
    label: a
    expect: "true"
`

const pausedScenario = `name: paused_push
description: "A call made after the host saved its state"
start_paused: true
initial_stack: [home]
steps:
  - call:
      label: a
      unit:
        simple:
          ops: [{show: settings}]
`

const wrongStackScenario = `name: wrong_stack
description: "Asserts a stack the call never produces"
initial_stack: [home]
steps:
  - call:
      label: a
      unit:
        simple:
          ops: [{show: settings}]
assertions:
  - type: final_stack
    stack: [home]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func textOpts() *RootOptions {
	return &RootOptions{Format: "text"}
}

func jsonOpts() *RootOptions {
	return &RootOptions{Format: "json"}
}
