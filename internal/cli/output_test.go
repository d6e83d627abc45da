package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rootsolve/internal/problem"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// decode parses a single JSON envelope written by a formatter.
func decode(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestOutputFormatter_JSONEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"iterations": 5}))
	resp := decode(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"iterations": float64(5)}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeGeneric, "no input named w", []string{"z", "p"}))
	resp = decode(t, buf)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeGeneric, resp.Error.Code)
	assert.Equal(t, "no input named w", resp.Error.Message)
	assert.Equal(t, []any{"z", "p"}, resp.Error.Details)
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
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, f.Error("E203", "residual does not compile", map[string]string{"file": "square.yaml"}))
			assert.Contains(t, buf.String(), "Error [E203]: residual does not compile")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_TextFallsBackToPrint(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("All problem files valid"))
	assert.Equal(t, "All problem files valid\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}
		f.VerboseLog("loading %s", "square.yaml")
		assert.Empty(t, out.String())
		assert.Empty(t, errOut.String())
	})

	t.Run("goes to ErrWriter", func(t *testing.T) {
		out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
		f.VerboseLog("loading %s", "square.yaml")
		assert.Empty(t, out.String())
		assert.Equal(t, "loading square.yaml\n", errOut.String())
	})

	t.Run("falls back to Writer", func(t *testing.T) {
		out := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
		f.VerboseLog("loading %s", "square.yaml")
		assert.Equal(t, "loading square.yaml\n", out.String())
	})
}

type fixedText string

func (f fixedText) Text() string { return string(f) }

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(fixedText("root: [2]\n")))
	assert.Equal(t, "root: [2]\n", buf.String())
}

func TestOutputFormatter_FailNumeric(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	ne := &rootfinder.NumericError{
		Code:       rootfinder.ErrCodeNonFinite,
		Message:    "residual is not finite",
		Iterations: 2,
		Norm:       math.Inf(1),
		Z:          []float64{math.NaN()},
	}
	err := formatter.Fail("solve failed", fmt.Errorf("wrapped: %w", ne))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, ne)

	resp := decode(t, buf)
	assert.Equal(t, "NON_FINITE", resp.Error.Code)
	details := resp.Error.Details.(map[string]any)
	assert.Equal(t, "+Inf", details["norm"])
	assert.Equal(t, "[NaN]", details["z"])
}

func TestOutputFormatter_FailCommandError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail("failed to load problem", &problem.LoadError{Code: problem.ErrCodeParse, Message: "bad yaml"})
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E201]: failed to load problem")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "y"))))
}
