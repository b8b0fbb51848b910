package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kisahsukses/kspai/internal/mcptools"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the AI pipeline as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPipeline(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			return server.ServeStdio(mcptools.NewServer(p.resolver, version))
		},
	}
}
