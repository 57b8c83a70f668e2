package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missingDescription = `name: no_description
steps:
  - pause: true
`

const duplicateLabels = `name: dup
description: "two calls share a label"
steps:
  - call: {label: a, unit: {none: true}}
  - call: {label: a, unit: {none: true}}
`

func TestValidateCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(NewValidateCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "push.yaml", pushScenario)

	out, _, err := execute(NewValidateCommand(textOpts()), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path+" (push_settings, 1 steps)")
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "push.yaml", pushScenario)
	schema := writeFile(t, dir, "schema.yaml", missingDescription)
	labels := writeFile(t, dir, "labels.yaml", duplicateLabels)

	out, _, err := execute(NewValidateCommand(textOpts()), good, schema, labels)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 file(s) invalid")
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+schema)
	assert.Contains(t, out, "schema:")
	assert.Contains(t, out, "✗ "+labels)
}

func TestValidateCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "push.yaml", pushScenario)
	bad := writeFile(t, dir, "labels.yaml", duplicateLabels)

	out, _, err := execute(NewValidateCommand(jsonOpts()), good, bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalid, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 2)
	assert.True(t, resp.Data.Files[0].Valid)
	assert.Equal(t, "push_settings", resp.Data.Files[0].Name)
	assert.False(t, resp.Data.Files[1].Valid)
	assert.NotEmpty(t, resp.Data.Files[1].Error)
}

func TestValidateCommand_UnreadableFile(t *testing.T) {
	_, _, err := execute(NewValidateCommand(textOpts()), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_RepositoryScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "harness", "testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	_, _, err = execute(NewValidateCommand(textOpts()), files...)
	require.NoError(t, err)
}
