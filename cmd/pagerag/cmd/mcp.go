package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfenderov/pagerag/internal/mcp"
	"github.com/mfenderov/pagerag/internal/pdftext"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server on stdio.

Tools:
  - ask_page: answer a question about page content
  - ask_pdf:  summarize or explain a local PDF

Example:
  pagerag mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, c.pipeline, pdftext.New())

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
