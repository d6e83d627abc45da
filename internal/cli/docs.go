package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/linsol"
	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// DocOptions holds flags for the doc command.
type DocOptions struct {
	*RootOptions
	Kind string // "rootfinder" | "linsol"
}

// PluginDoc is a plugin's documentation.
type PluginDoc struct {
	Kind    string      `json:"kind"`
	Name    string      `json:"name"`
	Doc     string      `json:"doc"`
	Options []OptionDoc `json:"options"`
	text    string
}

// OptionDoc documents one option.
type OptionDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description"`
}

// Text implements textRenderer.
func (d PluginDoc) Text() string { return d.text }

// NewDocCommand creates the doc command.
func NewDocCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "doc <plugin>",
		Short: "Show a plugin's documentation and options",
		Long: `Show a plugin's description followed by the table of options it
recognizes, with their types and defaults.

Examples:
  rootsolve doc newton
  rootsolve doc qr --kind linsol`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoc(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", rootfinder.Algorithms.Kind(), "plugin kind (rootfinder|linsol)")

	return cmd
}

func runDoc(opts *DocOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var doc PluginDoc
	var err error
	switch opts.Kind {
	case rootfinder.Algorithms.Kind():
		doc, err = lookupDoc(rootfinder.Algorithms, name)
	case linsol.Solvers.Kind():
		doc, err = lookupDoc(linsol.Solvers, name)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be rootfinder or linsol", opts.Kind))
	}
	if err != nil {
		return formatter.Fail("unknown plugin", err)
	}
	return formatter.Success(doc)
}

func lookupDoc[T, A any](r *plugin.Registry[T, A], name string) (PluginDoc, error) {
	p, err := r.Load(name)
	if err != nil {
		return PluginDoc{}, err
	}
	doc := PluginDoc{
		Kind: r.Kind(),
		Name: p.Name,
		Doc:  p.Doc,
		text: plugin.RenderDoc(p.Doc, p.Options),
	}
	for _, o := range p.Options {
		od := OptionDoc{Name: o.Name, Type: o.Type.String(), Description: o.Description}
		if !o.Default.IsNull() {
			od.Default = o.Default.String()
		}
		doc.Options = append(doc.Options, od)
	}
	return doc, nil
}
