package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navqueue/internal/journal"
)

// journaled runs pushScenario with --db and returns the database path.
func journaled(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "push.yaml", pushScenario)
	db := filepath.Join(dir, "journal.db")

	_, _, err := execute(NewRunCommand(textOpts()), path, "--db", db)
	require.NoError(t, err)
	return db
}

func TestTraceCommand_NoDatabase(t *testing.T) {
	_, _, err := execute(NewTraceCommand(textOpts()))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal")
}

func TestTraceCommand_EmptyJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := execute(NewTraceCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTraceCommand_ListRuns(t *testing.T) {
	db := journaled(t)

	out, _, err := execute(NewTraceCommand(textOpts()), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-cli")
	assert.Contains(t, out, "push_settings")
	assert.Contains(t, out, "postpone")
}

func TestTraceCommand_ShowRun(t *testing.T) {
	db := journaled(t)

	out, _, err := execute(NewTraceCommand(textOpts()), "--db", db, "--run", "run-cli")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-cli")
	assert.Contains(t, out, "Scenario: push_settings")
	assert.Contains(t, out, "simple")
	assert.Contains(t, out, "true")
	assert.NotContains(t, out, "submitted")
}

func TestTraceCommand_ShowRunVerbose(t *testing.T) {
	db := journaled(t)

	opts := textOpts()
	opts.Verbose = true
	out, _, err := execute(NewTraceCommand(opts), "--db", db, "--run", "run-cli")
	require.NoError(t, err)
	assert.Contains(t, out, "submitted")
	assert.Contains(t, out, "kind=simple")
	assert.Contains(t, out, "mutations=1")
}

func TestTraceCommand_JSON(t *testing.T) {
	db := journaled(t)

	out, _, err := execute(NewTraceCommand(jsonOpts()), "--db", db, "--run", "run-cli")
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   RunTrace `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-cli", resp.Data.Run.Token)
	require.Len(t, resp.Data.Submissions, 1)
	sub := resp.Data.Submissions[0]
	assert.Equal(t, "simple", sub.Kind)
	assert.Equal(t, 1, sub.Turns)
	assert.True(t, sub.Completed)
	assert.True(t, sub.OK)
	assert.Empty(t, resp.Data.Events)
}

func TestTraceCommand_UnknownRun(t *testing.T) {
	db := journaled(t)

	_, _, err := execute(NewTraceCommand(textOpts()), "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run missing not found")

	out, _, err := execute(NewTraceCommand(jsonOpts()), "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Contains(t, out, CodeNotFound)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		sub  journal.Submission
		want string
	}{
		{journal.Submission{}, "pending"},
		{journal.Submission{Completed: true, OK: true}, "true"},
		{journal.Submission{Completed: true}, "false"},
		{journal.Submission{Completed: true, Error: "HOST_REFUSED"}, "false: HOST_REFUSED"},
		{journal.Submission{Completed: true, Interrupted: true}, "false (interrupted)"},
		{journal.Submission{Completed: true, Cancelled: true}, "false (cancelled)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outcome(tt.sub))
	}
}
