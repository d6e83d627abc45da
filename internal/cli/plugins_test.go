package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginsListsBothKinds(t *testing.T) {
	out, err := execute(t, "plugins")
	require.NoError(t, err)

	assert.Contains(t, out, "rootfinder:\n")
	assert.Contains(t, out, "linsol:\n")
	assert.Contains(t, out, " * newton")
	assert.Contains(t, out, "   chord")
	assert.Contains(t, out, " * lu")
	assert.Contains(t, out, "   qr")
}

func TestPluginsJSON(t *testing.T) {
	out, err := execute(t, "plugins", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data PluginList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	defaults := map[string]string{}
	for _, p := range resp.Data {
		assert.NotEmpty(t, p.Summary, p.Name)
		assert.Positive(t, p.Options, p.Name)
		if p.Default {
			defaults[p.Kind] = p.Name
		}
	}
	assert.Equal(t, map[string]string{"rootfinder": "newton", "linsol": "lu"}, defaults)
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Newton's method.", firstSentence("Newton's method. With a line search."))
	assert.Equal(t, "no period", firstSentence("no period"))
}

func TestDocRendersOptionTable(t *testing.T) {
	out, err := execute(t, "doc", "newton")
	require.NoError(t, err)

	assert.Contains(t, out, ">List of available options")
	assert.Contains(t, out, "abstol")
	assert.Contains(t, out, "line_search")
}

func TestDocLinsolKind(t *testing.T) {
	out, err := execute(t, "doc", "qr", "--kind", "linsol", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data PluginDoc `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "linsol", resp.Data.Kind)
	assert.Equal(t, "qr", resp.Data.Name)
}

func TestDocUnknownPlugin(t *testing.T) {
	out, err := execute(t, "doc", "bisect", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeUnknownPlugin, decodeResponse(t, out).Error.Code)

	_, err = execute(t, "doc", "newton", "--kind", "integrator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid kind")
}
