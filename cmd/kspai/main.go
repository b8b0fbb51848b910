// Kspai is the Kisah Sukses Pro AI pipeline: a cache-fronted resolver that
// asks a hosted model when one is configured and answers from built-in
// rules otherwise, served over HTTP, MCP stdio, or the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "kspai",
		Short:         "Kisah Sukses Pro AI pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults are used when empty)")

	root.AddCommand(
		newServeCmd(&configPath),
		newAskCmd(&configPath),
		newHistoryCmd(&configPath),
		newCacheCmd(&configPath),
		newMCPCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
