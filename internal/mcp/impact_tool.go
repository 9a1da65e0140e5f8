package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// AddImpactTool registers the callscope_impact tool with an MCP server.
func AddImpactTool(s *server.MCPServer, searcher graph.Searcher) {
	tool := mcp.NewTool(
		"callscope_impact",
		mcp.WithDescription("Estimate the blast radius of changing a function: which direct callers would break, which transitive callers might, and which entry points and tests are affected. Run this before editing a widely used function."),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Function being changed: simple name, qualified name, or full id")),
		mcp.WithString("file",
			mcp.Description("Narrow the lookup to a file when the name is ambiguous")),
		mcp.WithString("change",
			mcp.Description("Change kind: signature-change (default), return-type-change, rename, deletion, or behavior-change")),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("Hop limit for the backward walk (0-%d, default: 0 = unlimited)", maxReachDepth))),
	)

	s.AddTool(tool, createImpactHandler(searcher))
}

// createImpactHandler creates the handler function for the impact tool.
func createImpactHandler(searcher graph.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
		change, err := parseStringArg(argsMap, "change", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if change == "" {
			change = graph.ChangeSignature
		}
		switch change {
		case graph.ChangeSignature, graph.ChangeReturnType, graph.ChangeRename, graph.ChangeDeletion, graph.ChangeBehavior:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown change kind %q (valid: signature-change, return-type-change, rename, deletion, behavior-change)", change)), nil
		}

		fn, err := searcher.FindFunction(function, file)
		if err != nil {
			return toolError(err)
		}

		result, err := searcher.Impact(ctx, fn.ID, graph.ImpactOptions{
			ChangeKind: change,
			MaxDepth:   parseClampedInt(argsMap, "max_depth", 0, 0, maxReachDepth),
		})
		if err != nil {
			return toolError(err)
		}

		summary := fmt.Sprintf("%s on %s: blast radius %s, %d direct caller(s), %d transitive, %d entry point(s), %d test(s)",
			result.ChangeKind, result.TargetName, result.BlastRadius,
			len(result.DirectCallers), len(result.TransitiveCallers),
			len(result.AffectedEntryPoints), len(result.AffectedTests))

		return newToolResult(summary, result,
			fmt.Sprintf("callscope_callers with function=%q depth=1 for the exact call sites", fn.ID),
		)
	}
}
