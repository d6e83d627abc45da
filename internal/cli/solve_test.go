package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/store"
)

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestSolveSquare(t *testing.T) {
	path := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	out, err := execute(t, "solve", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "square", data["problem"])
	assert.Equal(t, "newton", data["solver"])
	assert.Equal(t, store.StatusConverged, data["status"])
	root := data["root"].([]any)
	require.Len(t, root, 1)
	assert.InDelta(t, 2, root[0].(float64), 1e-10)
	assert.Nil(t, data["trace"])
}

func TestSolveInputOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	out, err := execute(t, "solve", path, "--input", "p=9", "--solver", "chord", "--set", "max_iter=100", "--format", "json")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, "chord", data["solver"])
	assert.InDelta(t, 3, data["root"].([]any)[0].(float64), 1e-9)
}

func TestSolveTextWithTrace(t *testing.T) {
	path := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	out, err := execute(t, "solve", path, "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "status: converged")
	assert.Contains(t, out, "root: [")
	assert.Contains(t, out, "iter  z")
}

func TestSolveSingularExitsWithFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	out, err := execute(t, "solve", path, "--input", "z=0", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "SINGULAR", resp.Error.Code)
}

func TestSolveCommandErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown solver", []string{"--solver", "bisect"}, ErrCodeUnknownPlugin},
		{"unknown option", []string{"--set", "abstoll=1e-8"}, ErrCodeOption},
		{"mistyped option", []string{"--set", "max_iter=lots"}, ErrCodeOption},
		{"unknown input", []string{"--input", "q=1"}, ErrCodeGeneric},
		{"wrong input size", []string{"--input", "p=1,2"}, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"solve", path, "--format", "json"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, tt.code, decodeResponse(t, out).Error.Code)
		})
	}
}

func TestSolveMissingProblem(t *testing.T) {
	out, err := execute(t, "solve", filepath.Join(t.TempDir(), "absent.yaml"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeNotFound, decodeResponse(t, out).Error.Code)
}

func TestSolveRecordsRunWithFixedID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "square.yaml", squareProblem)
	db := filepath.Join(dir, "history.db")

	root := &RootOptions{Format: "json", Database: db}
	cmd := NewSolveCommand(root)
	cmd.SetOut(&bytes.Buffer{})
	opts := &SolveOptions{RootOptions: root, IDs: store.NewFixedGenerator("run-1")}
	require.NoError(t, runSolve(opts, path, cmd))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "square", run.Problem)
	assert.Equal(t, store.StatusConverged, run.Status)
	assert.NotEmpty(t, run.Trace)
}

func TestParseSet(t *testing.T) {
	key, v, err := parseSet("abstol=1e-8")
	require.NoError(t, err)
	assert.Equal(t, "abstol", key)
	assert.True(t, v.IsDouble())

	_, v, err = parseSet("max_iter=50")
	require.NoError(t, err)
	assert.True(t, v.IsInt())

	_, _, err = parseSet("novalue")
	assert.Error(t, err)
}
