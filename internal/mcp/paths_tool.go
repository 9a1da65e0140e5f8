package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// AddPathsToDataTool registers the callscope_paths_to_data tool with an
// MCP server.
func AddPathsToDataTool(s *server.MCPServer, searcher graph.Searcher) {
	tool := mcp.NewTool(
		"callscope_paths_to_data",
		mcp.WithDescription("Find every entry point (HTTP handler, CLI command, job) that can reach a database table, with one representative call path each. Use this to answer 'who can read or write this table?'"),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name to trace (e.g. 'users')")),
		mcp.WithString("field",
			mcp.Description("Keep only accesses naming this field (e.g. 'email')")),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("Hop limit for the backward walk (0-%d, default: 0 = unlimited)", maxReachDepth))),
	)

	s.AddTool(tool, createPathsToDataHandler(searcher))
}

// createPathsToDataHandler creates the handler function for the
// paths-to-data tool.
func createPathsToDataHandler(searcher graph.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		table, err := parseStringArg(argsMap, "table", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		field, err := parseStringArg(argsMap, "field", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := searcher.PathsToData(ctx, graph.InverseOptions{
			Table:    table,
			Field:    field,
			MaxDepth: parseClampedInt(argsMap, "max_depth", 0, 0, maxReachDepth),
		})
		if err != nil {
			return toolError(err)
		}

		summary := fmt.Sprintf("table %q is reachable from %d entry point(s) via %d accessor(s)",
			result.TargetTable, len(result.EntryPoints), result.TotalAccessors)

		suggestions := make([]string, 0, 1)
		if len(result.EntryPoints) > 0 {
			suggestions = append(suggestions,
				fmt.Sprintf("callscope_reachability with function=%q to see everything that entry point touches", result.EntryPoints[0]))
		}

		return newToolResult(summary, result, suggestions...)
	}
}
