// Command scopeprobe instruments scope trees and serves their event feed.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scopeprobe/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
