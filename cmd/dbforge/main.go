// Command dbforge generates entity record containers with deterministic ids
// and merges them without id collisions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dbforge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
