package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// Callers tool bounds. Output goes into a model context, so the limit cap
// is deliberately low.
const (
	defaultCallersDepth = 1
	maxCallersDepth     = 10
	defaultCallersLimit = 50
	maxCallersLimit     = 200
)

// AddCallersTool registers the callscope_callers tool with an MCP server.
// This function is composable - it can be combined with other tool registrations.
func AddCallersTool(s *server.MCPServer, searcher graph.Searcher) {
	tool := mcp.NewTool(
		"callscope_callers",
		mcp.WithDescription("Find every function that calls the given function, directly or transitively. Use this before changing a function to see who depends on it. Returns caller records with file, line, and the call sites."),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Function to look up: a simple name ('getUserById'), a qualified name ('UserService.create'), or a full id ('src/api/users.ts:getUserById:42')")),
		mcp.WithString("file",
			mcp.Description("Narrow the lookup to a file when the name is ambiguous (path or path suffix)")),
		mcp.WithNumber("depth",
			mcp.Description(fmt.Sprintf("How many caller hops to walk (1-%d, default: %d)", maxCallersDepth, defaultCallersDepth))),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum callers to return (1-%d, default: %d)", maxCallersLimit, defaultCallersLimit))),
	)

	s.AddTool(tool, createCallersHandler(searcher))
}

// createCallersHandler creates the handler function for the callers tool.
func createCallersHandler(searcher graph.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
		depth := parseClampedInt(argsMap, "depth", defaultCallersDepth, 1, maxCallersDepth)
		limit := parseClampedInt(argsMap, "limit", defaultCallersLimit, 1, maxCallersLimit)

		fn, err := searcher.FindFunction(function, file)
		if err != nil {
			return toolError(err)
		}

		result, err := searcher.Callers(ctx, fn.ID, depth, limit)
		if err != nil {
			return toolError(err)
		}

		summary := fmt.Sprintf("%s has %d caller(s)", result.TargetName, result.TotalFound)
		if result.Truncated {
			summary += fmt.Sprintf(" (showing %d)", result.TotalReturned)
		}

		return newToolResult(summary, result,
			fmt.Sprintf("callscope_impact with function=%q to classify a change", fn.ID),
			fmt.Sprintf("callscope_reachability with function=%q to see what it touches", fn.ID),
		)
	}
}
