package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "pass"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(CodeInvalid, "scenario invalid", []string{"steps: required"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalid, resp.Error.Code)
	assert.Equal(t, "scenario invalid", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONFailureKeepsData(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Failure(map[string]int{"failed": 1}, CodeScenarioFailed, "1 scenario(s) failed"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(CodeNotFound, "run not found", "token=abc"))
			assert.Contains(t, buf.String(), "Error [E_NOT_FOUND]: run not found")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: token=abc")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Table(
		[]string{"ID", "Kind", "Result"},
		[][]string{
			{"1", "simple", "true"},
			{"2", "reactive", "false"},
		},
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "KIND")
	assert.Contains(t, out, "simple")
	assert.Contains(t, out, "reactive")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("loaded %d scenario(s)", 3)

	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 3 scenario(s)\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.NotContains(t, errOut.String(), "hidden")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "failed", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: failed: inner", wrapped.Error())
}
