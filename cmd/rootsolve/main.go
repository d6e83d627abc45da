// Command rootsolve solves implicit equations F(z, p) = 0 described by
// problem files and differentiates their roots.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/rootsolve/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// command failures were already reported in the selected format
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
