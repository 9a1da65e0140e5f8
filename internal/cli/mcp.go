package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/callscope/callscope/internal/config"
	"github.com/callscope/callscope/internal/graph"
	"github.com/callscope/callscope/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for call graph queries",
	Long: `Start the Model Context Protocol (MCP) server that lets LLM-powered
coding assistants query the call graph of your codebase.

The MCP server:
- Loads the persisted call graph from .callscope/
- Exposes callers, reachability, paths-to-data, impact, and stats tools
- Reloads automatically when 'callscope build' rewrites the graph
- Communicates via stdio (standard MCP transport)

Run 'callscope build' at least once before starting the server; until a
graph exists every tool returns a "run callscope build first" error.

Example:
  callscope mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	// Show startup information on stderr; stdout is the MCP transport.
	fmt.Fprintf(os.Stderr, "Callscope MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project Root: %s\n", rootDir)
	fmt.Fprintf(os.Stderr, "Graph File:   %s\n", filepath.Join(config.Dir(rootDir), graph.GraphFileName))
	fmt.Fprintf(os.Stderr, "\n")

	searcher, _, err := openSearcher(rootDir)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(searcher, config.Dir(rootDir))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	// Serve (blocks until shutdown)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
