package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/problem"
)

const brokenResidual = `name: broken
description: refers to an input that does not exist
inputs:
  - {name: z, value: [1]}
residual: |
  r: [z[0] - w[0]]
`

const unknownSolver = `name: unknown
description: names a solver that is not registered
solver: bisect
inputs:
  - {name: z, value: [1]}
residual: |
  r: [z[0] - 1]
`

func TestValidateValidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "square.yaml", squareProblem)
	writeFile(t, dir, "nested/coupled.yaml", coupledProblem)
	writeFile(t, dir, "notes.txt", "ignored")

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "All 2 problem file(s) valid")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_broken.yaml", brokenResidual)
	writeFile(t, dir, "b_square.yaml", squareProblem)
	writeFile(t, dir, "c_unknown.yaml", unknownSolver)

	out, err := execute(t, "validate", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Files)
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, problem.ErrCodeResidual, resp.Data.Errors[0].Code)
	assert.Equal(t, filepath.Join(dir, "a_broken.yaml"), resp.Data.Errors[0].File)
	assert.Equal(t, ErrCodeUnknownPlugin, resp.Data.Errors[1].Code)
}

func TestValidateFailFast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_broken.yaml", brokenResidual)
	writeFile(t, dir, "b_unknown.yaml", unknownSolver)

	out, err := execute(t, "validate", dir, "--fail-fast", "--format", "json")
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Errors, 1)
}

func TestValidateMissingPath(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "absent"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeNotFound, decodeResponse(t, out).Error.Code)
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir(), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoFiles, decodeResponse(t, out).Error.Code)
}

func TestFindYAMLFilesFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "square.yaml", squareProblem)
	writeFile(t, dir, "sub/square_wide.yml", squareProblem)
	writeFile(t, dir, "coupled.yaml", coupledProblem)

	files, err := findYAMLFiles(dir, "square*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "square.yaml"),
		filepath.Join(dir, "sub/square_wide.yml"),
	}, files)

	_, err = findYAMLFiles(dir, "[")
	assert.Error(t, err)
}
