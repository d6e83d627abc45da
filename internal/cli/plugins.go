package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/linsol"
	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// PluginInfo describes one registered plugin.
type PluginInfo struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
	Summary string `json:"summary"`
	Options int    `json:"options"`
}

// PluginList is the output of the plugins command.
type PluginList []PluginInfo

// Text implements textRenderer.
func (l PluginList) Text() string {
	var b strings.Builder
	kind := ""
	for _, p := range l {
		if p.Kind != kind {
			if kind != "" {
				b.WriteByte('\n')
			}
			kind = p.Kind
			fmt.Fprintf(&b, "%s:\n", kind)
		}
		mark := " "
		if p.Default {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %-10s %s\n", mark, p.Name, p.Summary)
	}
	return b.String()
}

// NewPluginsCommand creates the plugins command.
func NewPluginsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List rootfinder and linear solver plugins",
		Long: `List the registered rootfinder algorithms and linear solvers.

The default plugin of each kind is marked with *. Use "rootsolve doc <name>"
for a plugin's full documentation and option table.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(listPlugins())
		},
	}
	return cmd
}

func listPlugins() PluginList {
	var list PluginList
	list = appendEntries(list, rootfinder.Algorithms)
	list = appendEntries(list, linsol.Solvers)
	return list
}

func appendEntries[T, A any](list PluginList, r *plugin.Registry[T, A]) PluginList {
	for _, p := range r.Entries() {
		list = append(list, PluginInfo{
			Kind:    r.Kind(),
			Name:    p.Name,
			Default: p.Name == r.ShortName(),
			Summary: firstSentence(p.Doc),
			Options: len(p.Options),
		})
	}
	return list
}

// firstSentence returns doc up to and including its first period.
func firstSentence(doc string) string {
	if i := strings.Index(doc, ". "); i >= 0 {
		return doc[:i+1]
	}
	return doc
}
