package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/joescharf/reviewdesk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client analyze reviews and manage the history. Configure
the client with:

  {
    "mcpServers": {
      "reviewdesk": { "command": "reviewdesk", "args": ["mcp"] }
    }
  }

Available tools: review_analyze, review_list_history, review_update_reply,
review_delete, review_export`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	// stdout carries the protocol.
	ui.Out = io.Discard

	c, err := getController()
	if err != nil {
		return err
	}
	h, err := getHistory()
	if err != nil {
		return err
	}
	c.Refresh(cmd.Context())

	logger.Debug("mcp server starting", "version", buildVersion)
	return mcp.NewServer(c, h, buildVersion).ServeStdio(cmd.Context())
}
