package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docindex/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

Tools:
  ingest_document  ingest a document into the configured store
  index_info       describe the vector index
  get_passage      fetch an indexed passage by id

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  docindex mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  docindex mcp serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if openIngest == nil {
		return errNotConfigured
	}

	settings, err := currentSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	session, err := openIngest(cmd.Context(), *settings)
	if err != nil {
		return err
	}
	defer session.Close()

	server, err := mcp.NewServer(&mcp.Ports{
		Index:  session.Index(),
		Ingest: session.Ingest(),
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
