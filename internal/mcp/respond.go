package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/callscope/callscope/internal/graph"
)

// toolResponse is the envelope every callscope tool returns: a one-line
// summary for the model, the structured result, and follow-up calls that
// commonly make sense next.
type toolResponse struct {
	Summary        string      `json:"summary"`
	Result         interface{} `json:"result"`
	SuggestedCalls []string    `json:"suggested_calls,omitempty"`
}

// newToolResult wraps a query result in the response envelope and returns
// it as JSON text (mcp-go convention).
func newToolResult(summary string, result interface{}, suggestions ...string) (*mcp.CallToolResult, error) {
	response := &toolResponse{
		Summary:        summary,
		Result:         result,
		SuggestedCalls: suggestions,
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// toolError maps query failures to structured tool errors with a
// remediation hint. Recoverable failures become error results the model
// can act on; anything else propagates as a protocol error.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, graph.ErrGraphNotBuilt) {
		return mcp.NewToolResultError("no call graph available: run `callscope build` first"), nil
	}
	if errors.Is(err, graph.ErrSchemaVersion) {
		return mcp.NewToolResultError("call graph was built by an incompatible version: run `callscope build` again"), nil
	}

	var ambiguous *graph.AmbiguousError
	if errors.As(err, &ambiguous) {
		return mcp.NewToolResultError(ambiguous.Error() + "; pass the file parameter to pick one"), nil
	}

	var notFound *graph.NotFoundError
	if errors.As(err, &notFound) {
		return mcp.NewToolResultError(notFound.Error()), nil
	}

	return nil, err
}
