package main

import (
	"github.com/claude/repcoach/internal/clock"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/registry"
	"github.com/claude/repcoach/internal/session"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serves exercise and session tools over stdio for an MCP client. With --server
the tools read from the remote service, otherwise from the local catalog with no
live sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(cmd)

		var ds mcp.DataSource
		if url, _ := cmd.Flags().GetString("server"); url != "" {
			ds = mcp.NewHTTPClient(url)
			log.Info("mcp using remote server", "url", url)
		} else {
			catalog, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			ds = mcp.Local{Sessions: registry.New(catalog, session.DefaultConfig(), clock.Real{}, nil, log)}
		}

		return server.ServeStdio(mcp.New(ds, version, log))
	},
}
