package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/store"
)

func history(t *testing.T, args ...string) (CLIResponse, error) {
	t.Helper()
	out, err := execute(t, append([]string{"history", "--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

func TestHistoryListsRecordedRuns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "square.yaml", squareProblem)
	db := filepath.Join(dir, "history.db")

	_, err := execute(t, "solve", path, "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "solve", path, "--db", db, "--input", "z=0")
	require.Error(t, err)

	resp, err := history(t, "--db", db)
	require.NoError(t, err)
	runs := resp.Data.([]any)
	require.Len(t, runs, 2)
	first := runs[0].(map[string]any)
	second := runs[1].(map[string]any)
	assert.Equal(t, store.StatusConverged, first["status"])
	assert.Equal(t, store.StatusFailed, second["status"])
	assert.Equal(t, "SINGULAR", second["error_code"])

	resp, err = history(t, "--db", db, "--status", "failed")
	require.NoError(t, err)
	assert.Len(t, resp.Data.([]any), 1)

	resp, err = history(t, "--db", db, "--problem", "other")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestHistoryShowsOneRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "square.yaml", squareProblem)
	db := filepath.Join(dir, "history.db")

	out, err := execute(t, "solve", path, "--db", db, "--format", "json")
	require.NoError(t, err)
	id := decodeResponse(t, out).Data.(map[string]any)["run_id"].(string)
	require.NotEmpty(t, id)

	text, err := execute(t, "history", "--db", db, id)
	require.NoError(t, err)
	assert.Contains(t, text, "run: "+id)
	assert.Contains(t, text, "status: converged")
	assert.Contains(t, text, "iter  z")
}

func TestHistoryUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	resp, err := history(t, "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeRunNotFound, resp.Error.Code)
}

func TestHistoryRequiresDatabase(t *testing.T) {
	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "history", "--db", filepath.Join(t.TempDir(), "h.db"), "--status", "pending")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestHistoryListText(t *testing.T) {
	assert.Equal(t, "No runs recorded.\n", HistoryList{}.Text())

	text := HistoryList{{ID: "run-1", Seq: 1, Problem: "square", Solver: "newton", Status: "failed", ErrorCode: "SINGULAR"}}.Text()
	assert.Contains(t, text, "SINGULAR")
	assert.NotContains(t, text, "failed")
}
