package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscope/callscope/internal/config"
	"github.com/callscope/callscope/internal/graph"
)

// Test Plan for CLI commands:
// - callers prints direct callers with call sites, and JSON on --json
// - reach reports reachable data access with the path taken
// - paths-to reports entry points above a table's accessors
// - impact classifies callers and prints the blast radius
// - stats prints build metadata in text and JSON form
// - clean removes the graph and staging files, tolerating a missing graph
// - build runs end to end against a real project tree
// - query commands fail with an actionable message when no graph exists
//
// Note: These tests cannot use t.Parallel() because they mutate package
// flag variables and capture os.Stdout.

// resetCommandFlags restores every command flag to its registered default
// when the test finishes.
func resetCommandFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		rootFlag = ""
		callersFileFlag, callersDepthFlag, callersLimitFlag, callersJSONFlag = "", 1, 50, false
		reachFileFlag, reachMaxDepthFlag, reachTablesFlag = "", 0, ""
		reachSensitiveFlag, reachUnresolvedFlag, reachJSONFlag = false, false, false
		pathsToFieldFlag, pathsToMaxDepthFlag, pathsToJSONFlag = "", 0, false
		impactFileFlag, impactChangeFlag, impactMaxDepthFlag, impactJSONFlag = "", graph.ChangeSignature, 0, false
		statsJSONFlag = false
		cleanQuietFlag = false
		buildQuietFlag, buildWatchFlag, buildWorkersFlag = false, false, 0
	})
}

// captureOutput runs fn while collecting everything it writes to stdout.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	runErr := fn()

	w.Close()
	<-done
	os.Stdout = oldStdout

	return buf.String(), runErr
}

// seedGraph persists a small call graph under dir/.callscope: an HTTP
// handler calling a service function that reads the users table.
func seedGraph(t *testing.T, dir string) (handlerID, serviceID string) {
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
		BuildID:     "test-build",
		ProjectRoot: dir,
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

	storage, err := graph.NewStorage(config.Dir(dir))
	require.NoError(t, err)
	require.NoError(t, storage.Save(cg))
	return handlerID, serviceID
}

func TestRunCallers_Text(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	_, serviceID := seedGraph(t, dir)
	rootFlag = dir

	output, err := captureOutput(t, func() error {
		return runCallers(callersCmd, []string{"getUser"})
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Callers of "+serviceID+" (1 found)")
	assert.Contains(t, output, "[depth 1] handleUsers (src/api/users.ts:5)")
	assert.Contains(t, output, "calls at src/api/users.ts:7")
}

func TestRunCallers_JSON(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	handlerID, serviceID := seedGraph(t, dir)
	rootFlag = dir
	callersJSONFlag = true

	output, err := captureOutput(t, func() error {
		return runCallers(callersCmd, []string{"getUser"})
	})
	require.NoError(t, err)

	var result graph.CallersResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, serviceID, result.TargetID)
	assert.Equal(t, 1, result.TotalFound)
	assert.False(t, result.Truncated)
	require.Len(t, result.Callers, 1)
	assert.Equal(t, handlerID, result.Callers[0].Function.ID)
}

func TestRunCallers_NoGraph(t *testing.T) {
	resetCommandFlags(t)
	rootFlag = t.TempDir()

	_, err := captureOutput(t, func() error {
		return runCallers(callersCmd, []string{"getUser"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no call graph found")
	assert.Contains(t, err.Error(), "callscope build")
}

func TestRunCallers_UnknownFunction(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir

	_, err := captureOutput(t, func() error {
		return runCallers(callersCmd, []string{"noSuchFunction"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunReach_Text(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	handlerID, _ := seedGraph(t, dir)
	rootFlag = dir

	output, err := captureOutput(t, func() error {
		return runReach(reachCmd, []string{"handleUsers"})
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Reachable from "+handlerID)
	assert.Contains(t, output, "read users [id, email] at src/service/user.ts:12 (depth 1)")
	assert.Contains(t, output, "via handleUsers:7 -> getUser:12")
}

func TestRunReach_JSON(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir
	reachJSONFlag = true

	output, err := captureOutput(t, func() error {
		return runReach(reachCmd, []string{"handleUsers"})
	})
	require.NoError(t, err)

	var result graph.ReachabilityResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, []string{"users"}, result.Tables)
	assert.Equal(t, 2, result.FunctionsTraversed)
	require.Len(t, result.ReachableAccess, 1)
	assert.Equal(t, 1, result.ReachableAccess[0].Depth)
}

func TestRunPathsTo_Text(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	handlerID, _ := seedGraph(t, dir)
	rootFlag = dir

	output, err := captureOutput(t, func() error {
		return runPathsTo(pathsToCmd, []string{"users"})
	})
	require.NoError(t, err)

	assert.Contains(t, output, `Table "users": 1 accessor(s), 1 entry point(s)`)
	assert.Contains(t, output, "read users at src/service/user.ts:12")
	assert.Contains(t, output, "from "+handlerID)
}

func TestRunImpact_Text(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	_, serviceID := seedGraph(t, dir)
	rootFlag = dir
	impactChangeFlag = graph.ChangeDeletion

	output, err := captureOutput(t, func() error {
		return runImpact(impactCmd, []string{"getUser"})
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Impact of deletion on "+serviceID+": blast radius significant")
	assert.Contains(t, output, "Direct callers (1):")

	// Test: a deletion marks direct callers as would-break
	assert.Contains(t, output, "! handleUsers (src/api/users.ts:5)")
}

func TestRunImpact_UnknownChangeKind(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir
	impactChangeFlag = "repaint"

	_, err := captureOutput(t, func() error {
		return runImpact(impactCmd, []string{"getUser"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown change kind")
}

func TestRunStats_Text(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir

	output, err := captureOutput(t, func() error {
		return runStats(statsCmd, nil)
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Functions:       2")
	assert.Contains(t, output, "Calls:           1 (100% resolved)")
	assert.Contains(t, output, "Entry points:    1")
	assert.Contains(t, output, "typescript")
}

func TestRunStats_JSON(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir
	statsJSONFlag = true

	output, err := captureOutput(t, func() error {
		return runStats(statsCmd, nil)
	})
	require.NoError(t, err)

	var info graph.GraphInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "test-build", info.BuildID)
	assert.Equal(t, 2, info.Stats.TotalFunctions)
	assert.Equal(t, 1, info.Stats.DataAccessors)
}

func TestRunClean_RemovesGraph(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir

	graphPath := filepath.Join(config.Dir(dir), graph.GraphFileName)
	stagingPath := filepath.Join(config.Dir(dir), ".tmp")

	output, err := captureOutput(t, func() error {
		return runClean(cleanCmd, nil)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Removed call graph")

	_, err = os.Stat(graphPath)
	assert.True(t, os.IsNotExist(err), "graph file should be deleted")
	_, err = os.Stat(stagingPath)
	assert.True(t, os.IsNotExist(err), "staging directory should be deleted")
}

func TestRunClean_NoGraph(t *testing.T) {
	resetCommandFlags(t)
	rootFlag = t.TempDir()

	output, err := captureOutput(t, func() error {
		return runClean(cleanCmd, nil)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "No call graph found")
}

func TestRunClean_Quiet(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()
	seedGraph(t, dir)
	rootFlag = dir
	cleanQuietFlag = true

	output, err := captureOutput(t, func() error {
		return runClean(cleanCmd, nil)
	})
	require.NoError(t, err)
	assert.Empty(t, output)
}

func TestRunBuild_EndToEnd(t *testing.T) {
	resetCommandFlags(t)
	dir := t.TempDir()

	writeProjectFile(t, dir, "src/service.ts", `export function getUser(id: string) {
  return db.query("SELECT id, email FROM users WHERE id = ?", id);
}
`)
	writeProjectFile(t, dir, "src/handler.ts", `import { getUser } from './service';

export function handleUsers(req) {
  return getUser(req.id);
}
`)

	rootFlag = dir
	buildQuietFlag = true

	output, err := captureOutput(t, func() error {
		return runBuild(buildCmd, nil)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Build complete:")

	graphPath := filepath.Join(config.Dir(dir), graph.GraphFileName)
	_, err = os.Stat(graphPath)
	require.NoError(t, err, "build should persist the graph")

	// Test: the persisted graph answers queries
	statsJSONFlag = true
	output, err = captureOutput(t, func() error {
		return runStats(statsCmd, nil)
	})
	require.NoError(t, err)

	var info graph.GraphInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, 2, info.Stats.TotalFunctions)
	assert.Equal(t, 2, info.Stats.FilesProcessed)
	assert.Equal(t, 1, info.Stats.ResolvedCalls)
	assert.Equal(t, 1, info.Stats.DataAccessors)
	assert.Equal(t, map[string]int{"typescript": 2}, info.Stats.Languages)
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
