package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareProblem = `name: square
description: z^2 - p = 0 from a nearby guess
solver: newton
options:
  abstol: 1e-12
  max_iter: 50
inputs:
  - {name: z, value: [2.1]}
  - {name: p, value: [4]}
residual: |
  r: [z[0]*z[0] - p[0]]
expect:
  root: [2]
  tol: 1e-10
`

// writeFile writes content to name below dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"solve", "sens", "plugins", "doc", "history", "validate", "test"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "format", "db", "plugin-path"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestPluginPathDefaultsToEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(PluginPathEnv, dir)

	cmd := NewRootCommand()
	assert.Equal(t, dir, cmd.PersistentFlags().Lookup("plugin-path").DefValue)
}

func TestPluginPathFromEnvironmentIsSearched(t *testing.T) {
	pluginDir := t.TempDir()
	writeFile(t, pluginDir, "rootfinder_envonly.so", "not a shared object")
	t.Setenv(PluginPathEnv, pluginDir)
	problem := writeFile(t, t.TempDir(), "square.yaml", squareProblem)

	out, err := execute(t, "solve", problem, "--solver", "envonly", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	// the unreadable file was found and opened, not skipped as unknown
	assert.Contains(t, out, "rootfinder_envonly.so")
}

func TestRootCommandRejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "plugins", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
