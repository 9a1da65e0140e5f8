package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// AddStatsTool registers the callscope_stats tool with an MCP server.
func AddStatsTool(s *server.MCPServer, searcher graph.Searcher) {
	tool := mcp.NewTool(
		"callscope_stats",
		mcp.WithDescription("Return call graph metadata: when it was built, how many functions and calls it holds, the call resolution rate, entry point and data accessor counts, and per-language file counts. Call this first to confirm a graph exists."),
	)

	s.AddTool(tool, createStatsHandler(searcher))
}

// createStatsHandler creates the handler function for the stats tool.
func createStatsHandler(searcher graph.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := searcher.Info()
		if err != nil {
			return toolError(err)
		}

		summary := fmt.Sprintf("graph built %s: %d functions, %d calls (%.0f%% resolved), %d entry points, %d data accessors",
			info.GeneratedAt.Format("2006-01-02 15:04"),
			info.Stats.TotalFunctions, info.Stats.TotalCalls,
			info.Stats.ResolutionRate*100,
			info.Stats.EntryPoints, info.Stats.DataAccessors)

		return newToolResult(summary, info,
			"callscope_callers to trace who calls a function",
			"callscope_paths_to_data to trace who reaches a table",
		)
	}
}
