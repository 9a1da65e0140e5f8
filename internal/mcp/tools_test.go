package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscope/callscope/internal/graph"
)

// Test Plan for MCP tools:
//
// 1. Each tool registers against an MCP server without panicking.
// 2. Handlers answer queries over a seeded graph: callers, reachability,
//    paths-to-data, impact, and stats all return the envelope with the
//    expected summary and structured result.
// 3. Handlers surface argument mistakes (missing/invalid parameters) as
//    error results the model can correct.
// 4. Graph-level failures (not built, unknown function, unknown table)
//    map to actionable error results.
//
// Handlers are invoked directly, bypassing the stdio transport.

// newTestSearcher opens a searcher over a seeded two-function graph: an
// HTTP handler calling a service function that reads the users table.
func newTestSearcher(t *testing.T) (searcher graph.Searcher, handlerID, serviceID string) {
	t.Helper()

	handlerID = graph.FunctionID("src/api/users.ts", "handleUsers", 5)
	serviceID = graph.FunctionID("src/service/user.ts", "getUser", 10)

	handler := &graph.FunctionRecord{
		ID:             handlerID,
		Name:           "handleUsers",
		QualifiedName:  "handleUsers",
		File:           "src/api/users.ts",
		Language:       "typescript",
		StartLine:      5,
		EndLine:        20,
		Exported:       true,
		EntryPoint:     true,
		EntryPointKind: graph.EntryHTTPHandler,
		Calls: []*graph.CallReference{{
			CallerID:   handlerID,
			CalleeID:   serviceID,
			CalleeName: "getUser",
			File:       "src/api/users.ts",
			Line:       7,
			ArgCount:   1,
			Resolved:   true,
			Candidates: []string{serviceID},
			Confidence: 0.95,
			Reason:     graph.ReasonExactImport,
		}},
	}
	service := &graph.FunctionRecord{
		ID:            serviceID,
		Name:          "getUser",
		QualifiedName: "UserService.getUser",
		File:          "src/service/user.ts",
		Language:      "typescript",
		StartLine:     10,
		EndLine:       30,
		Exported:      true,
		CalledBy:      []string{handlerID},
		DataAccess: []graph.DataAccessFact{{
			Table:      "users",
			Operation:  "read",
			Fields:     []string{"id", "email"},
			File:       "src/service/user.ts",
			Line:       12,
			Confidence: 0.9,
		}},
	}

	cg := &graph.CallGraph{
		BuildID: "test-build",
		Functions: map[string]*graph.FunctionRecord{
			handlerID: handler,
			serviceID: service,
		},
		EntryPoints:   []string{handlerID},
		DataAccessors: []string{serviceID},
		Stats: graph.Stats{
			FilesProcessed: 2,
			TotalFunctions: 2,
			TotalCalls:     1,
			ResolvedCalls:  1,
			ResolutionRate: 1.0,
			EntryPoints:    1,
			DataAccessors:  1,
			Languages:      map[string]int{"typescript": 2},
		},
	}

	storage, err := graph.NewStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, storage.Save(cg))

	searcher, err = graph.NewSearcher(storage, graph.SearcherOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { searcher.Close() })
	return searcher, handlerID, serviceID
}

// newEmptySearcher opens a searcher over a directory with no graph.
func newEmptySearcher(t *testing.T) graph.Searcher {
	t.Helper()

	storage, err := graph.NewStorage(t.TempDir())
	require.NoError(t, err)

	searcher, err := graph.NewSearcher(storage, graph.SearcherOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { searcher.Close() })
	return searcher
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotNil(t, result)
	require.True(t, result.IsError, "expected an error result")
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

func TestRegisterTools(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	s := server.NewMCPServer("test-server", "1.0.0")

	assert.NotPanics(t, func() {
		AddCallersTool(s, searcher)
		AddReachabilityTool(s, searcher)
		AddPathsToDataTool(s, searcher)
		AddImpactTool(s, searcher)
		AddStatsTool(s, searcher)
	})
}

func TestCallersHandler(t *testing.T) {
	t.Parallel()

	searcher, handlerID, serviceID := newTestSearcher(t)
	handler := createCallersHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "getUser",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "getUser has 1 caller(s)", envelope.Summary)
	assert.NotEmpty(t, envelope.SuggestedCalls)

	var callers graph.CallersResult
	require.NoError(t, json.Unmarshal(envelope.Result, &callers))
	assert.Equal(t, serviceID, callers.TargetID)
	assert.Equal(t, 1, callers.TotalFound)
	assert.False(t, callers.Truncated)
	require.Len(t, callers.Callers, 1)
	assert.Equal(t, handlerID, callers.Callers[0].Function.ID)
	assert.Equal(t, 1, callers.Callers[0].Depth)
}

func TestCallersHandler_MissingFunction(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createCallersHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "function parameter is required")
}

func TestCallersHandler_InvalidArgumentsFormat(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createCallersHandler(searcher)

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: "not-a-map"},
	})
	require.NoError(t, err)
	assert.Equal(t, "invalid arguments format", errorText(t, result))
}

func TestCallersHandler_UnknownFunction(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createCallersHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "nonsense",
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "not found")
}

func TestCallersHandler_GraphNotBuilt(t *testing.T) {
	t.Parallel()

	searcher := newEmptySearcher(t)
	handler := createCallersHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "getUser",
	}))
	require.NoError(t, err)
	assert.Equal(t, "no call graph available: run `callscope build` first", errorText(t, result))
}

func TestReachabilityHandler(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createReachabilityHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "handleUsers",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "handleUsers reaches 1 table(s) across 2 function(s): users", envelope.Summary)

	var reach graph.ReachabilityResult
	require.NoError(t, json.Unmarshal(envelope.Result, &reach))
	assert.Equal(t, []string{"users"}, reach.Tables)
	assert.Equal(t, 2, reach.FunctionsTraversed)
	require.Len(t, reach.ReachableAccess, 1)
	assert.Equal(t, 1, reach.ReachableAccess[0].Depth)
}

func TestReachabilityHandler_TableFilter(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createReachabilityHandler(searcher)

	// Filter for a table the function never touches.
	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "handleUsers",
		"tables":   []interface{}{"orders"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Contains(t, envelope.Summary, "reaches 0 table(s)")

	var reach graph.ReachabilityResult
	require.NoError(t, json.Unmarshal(envelope.Result, &reach))
	assert.Empty(t, reach.Tables)
}

func TestPathsToDataHandler(t *testing.T) {
	t.Parallel()

	searcher, handlerID, _ := newTestSearcher(t)
	handler := createPathsToDataHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"table": "users",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, `table "users" is reachable from 1 entry point(s) via 1 accessor(s)`, envelope.Summary)

	var inverse graph.InverseResult
	require.NoError(t, json.Unmarshal(envelope.Result, &inverse))
	assert.Equal(t, "users", inverse.TargetTable)
	assert.Equal(t, []string{handlerID}, inverse.EntryPoints)
	assert.Equal(t, 1, inverse.TotalAccessors)
}

func TestPathsToDataHandler_MissingTable(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createPathsToDataHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "table parameter is required")
}

func TestPathsToDataHandler_UnknownTable(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createPathsToDataHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"table": "payments",
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "not found")
}

func TestImpactHandler(t *testing.T) {
	t.Parallel()

	searcher, _, serviceID := newTestSearcher(t)
	handler := createImpactHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "getUser",
		"change":   "deletion",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t,
		"deletion on getUser: blast radius significant, 1 direct caller(s), 0 transitive, 1 entry point(s), 0 test(s)",
		envelope.Summary)

	var impact graph.ImpactResult
	require.NoError(t, json.Unmarshal(envelope.Result, &impact))
	assert.Equal(t, serviceID, impact.TargetID)
	assert.Equal(t, graph.ChangeDeletion, impact.ChangeKind)
	require.Len(t, impact.DirectCallers, 1)
	assert.True(t, impact.DirectCallers[0].WouldBreak, "deletion breaks every direct caller")
	assert.Equal(t, "significant", impact.BlastRadius)
}

func TestImpactHandler_DefaultChangeKind(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createImpactHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "getUser",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Contains(t, envelope.Summary, "signature-change on getUser")
}

func TestImpactHandler_UnknownChangeKind(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createImpactHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"function": "getUser",
		"change":   "repaint",
	}))
	require.NoError(t, err)
	text := errorText(t, result)
	assert.Contains(t, text, `unknown change kind "repaint"`)
	assert.Contains(t, text, "signature-change")
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()

	searcher, _, _ := newTestSearcher(t)
	handler := createStatsHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	envelope := decodeEnvelope(t, result)
	assert.Contains(t, envelope.Summary, "2 functions, 1 calls (100% resolved)")
	assert.Contains(t, envelope.Summary, "1 entry points, 1 data accessors")

	var info graph.GraphInfo
	require.NoError(t, json.Unmarshal(envelope.Result, &info))
	assert.Equal(t, "test-build", info.BuildID)
	assert.Equal(t, 2, info.Stats.TotalFunctions)
	assert.Equal(t, map[string]int{"typescript": 2}, info.Stats.Languages)
}

func TestStatsHandler_GraphNotBuilt(t *testing.T) {
	t.Parallel()

	searcher := newEmptySearcher(t)
	handler := createStatsHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "no call graph available")
}
