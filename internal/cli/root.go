package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/linsol"
	"github.com/roach88/rootsolve/internal/plugin"
	"github.com/roach88/rootsolve/internal/rootfinder"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // solve history; empty disables recording
	PluginPath string // extra plugin directories, os.PathListSeparator separated
}

// PluginPathEnv supplies the default of --plugin-path.
const PluginPathEnv = "ROOTSOLVE_PLUGIN_PATH"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rootsolve CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rootsolve",
		Short: "rootsolve - implicit rootfinding with sensitivities",
		Long: `Solve F(z, p) = 0 for z and differentiate the root with respect to p.

Problems are YAML files naming their inputs and a residual written in CUE.
Algorithms and linear solvers are plugins; list them with "rootsolve plugins".`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd, opts)
			if opts.PluginPath != "" {
				addPluginDirs(filepath.SplitList(opts.PluginPath))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite solve history")
	cmd.PersistentFlags().StringVar(&opts.PluginPath, "plugin-path", os.Getenv(PluginPathEnv),
		"directories searched for plugin shared objects (default $"+PluginPathEnv+")")

	// Add subcommands
	cmd.AddCommand(NewSolveCommand(opts))
	cmd.AddCommand(NewSensCommand(opts))
	cmd.AddCommand(NewPluginsCommand(opts))
	cmd.AddCommand(NewDocCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// configureLogging routes slog to stderr. Library logging is limited to
// errors unless --verbose is set.
func configureLogging(cmd *cobra.Command, opts *RootOptions) {
	level := slog.LevelError
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// addPluginDirs makes plugins in dirs discoverable by name.
func addPluginDirs(dirs []string) {
	rootfinder.Algorithms.AddLocator(plugin.NewDirLocator(dirs...))
	linsol.Solvers.AddLocator(plugin.NewDirLocator(dirs...))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
