package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// Reachability walk bound. Zero means unlimited, which is safe because
// traversal visits each function at most once.
const maxReachDepth = 50

// AddReachabilityTool registers the callscope_reachability tool with an
// MCP server.
func AddReachabilityTool(s *server.MCPServer, searcher graph.Searcher) {
	tool := mcp.NewTool(
		"callscope_reachability",
		mcp.WithDescription("Find every database table and field transitively reachable from a function, with the call path that reaches it. Use this to audit what data an endpoint can touch."),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Function to start from: simple name, qualified name, or full id")),
		mcp.WithString("file",
			mcp.Description("Narrow the lookup to a file when the name is ambiguous")),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("Hop limit for the walk (0-%d, default: 0 = unlimited)", maxReachDepth))),
		mcp.WithBoolean("sensitive_only",
			mcp.Description("Keep only tables configured as sensitive in .callscope/config.yaml")),
		mcp.WithArray("tables",
			mcp.Description("Keep only accesses to these tables (e.g. ['users', 'payments'])")),
		mcp.WithBoolean("include_unresolved",
			mcp.Description("Also report dynamic call sites the walk could not follow")),
	)

	s.AddTool(tool, createReachabilityHandler(searcher))
}

// createReachabilityHandler creates the handler function for the
// reachability tool.
func createReachabilityHandler(searcher graph.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		function, err := parseStringArg(argsMap, "function", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		file, err := parseStringArg(argsMap, "file", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		opts := graph.ReachabilityOptions{
			MaxDepth:          parseClampedInt(argsMap, "max_depth", 0, 0, maxReachDepth),
			SensitiveOnly:     parseBoolArg(argsMap, "sensitive_only", false),
			Tables:            parseArrayArg(argsMap, "tables"),
			IncludeUnresolved: parseBoolArg(argsMap, "include_unresolved", false),
		}

		fn, err := searcher.FindFunction(function, file)
		if err != nil {
			return toolError(err)
		}

		result, err := searcher.Reachability(ctx, fn.ID, opts)
		if err != nil {
			return toolError(err)
		}

		summary := fmt.Sprintf("%s reaches %d table(s) across %d function(s)",
			fn.Name, len(result.Tables), result.FunctionsTraversed)
		if len(result.Tables) > 0 {
			summary += ": " + strings.Join(result.Tables, ", ")
		}

		suggestions := []string{
			fmt.Sprintf("callscope_callers with function=%q to see who can trigger these accesses", fn.ID),
		}
		if len(result.Tables) > 0 {
			suggestions = append(suggestions,
				fmt.Sprintf("callscope_paths_to_data with table=%q to see every other path into it", result.Tables[0]))
		}

		return newToolResult(summary, result, suggestions...)
	}
}
