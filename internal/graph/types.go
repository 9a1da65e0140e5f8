package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion tags persisted call graph documents. A document with any
// other version is rejected and must be rebuilt.
const SchemaVersion = "1.0"

// Resolution reason tags describing how a call reference was matched.
const (
	ReasonExactSameFile   = "exact-same-file"
	ReasonExactImport     = "exact-import"
	ReasonClassScoped     = "class-scoped"
	ReasonGlobalUnique    = "global-unique"
	ReasonGlobalAmbiguous = "global-ambiguous"
)

// Unresolved reason tags, a closed set. Dynamic call shapes are never
// resolved; the tag tells consumers why not.
const (
	UnresolvedDynamicDispatch = "dynamic-dispatch"
	UnresolvedReflection      = "reflection"
	UnresolvedEval            = "eval"
	UnresolvedExternalLibrary = "external-library"
	UnresolvedComputedName    = "computed-name"
	UnresolvedHigherOrder     = "higher-order"
	UnresolvedPluginSystem    = "plugin-system"
)

// Entry point kinds recognized by the assembler.
const (
	EntryHTTPHandler  = "http-handler"
	EntryCLICommand   = "cli-command"
	EntryEventHandler = "event-handler"
	EntryTest         = "test"
	EntryScheduledJob = "scheduled-job"
	EntryExportedRoot = "exported-root"
)

// Blast radius classifications for a proposed change.
const (
	BlastMinimal     = "minimal"
	BlastModerate    = "moderate"
	BlastSignificant = "significant"
	BlastSevere      = "severe"
)

// FunctionRecord is one defined function or method in the graph. Records
// are created once per build and never mutated afterwards; a rebuild
// replaces the whole mapping.
type FunctionRecord struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	QualifiedName  string           `json:"qualified_name"`
	File           string           `json:"file"`
	Language       string           `json:"language"`
	StartLine      int              `json:"start_line"`
	EndLine        int              `json:"end_line"`
	Exported       bool             `json:"exported"`
	Async          bool             `json:"async"`
	Constructor    bool             `json:"constructor"`
	Parameters     []Parameter      `json:"parameters,omitempty"`
	ReturnType     string           `json:"return_type,omitempty"`
	Decorators     []string         `json:"decorators,omitempty"`
	Calls          []*CallReference `json:"calls,omitempty"`
	CalledBy       []string         `json:"called_by,omitempty"`
	DataAccess     []DataAccessFact `json:"data_access,omitempty"`
	EntryPoint     bool             `json:"entry_point"`
	EntryPointKind string           `json:"entry_point_kind,omitempty"`
}

// IsTest reports whether the record is a test entry point.
func (f *FunctionRecord) IsTest() bool {
	return f.EntryPointKind == EntryTest
}

// Parameter is one declared parameter on a FunctionRecord.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
	Rest    bool   `json:"rest,omitempty"`
}

// CallReference is one call site owned by its caller's record. CalleeID is
// empty until the resolver matches it.
type CallReference struct {
	CallerID         string   `json:"caller_id"`
	CalleeID         string   `json:"callee_id,omitempty"`
	CalleeName       string   `json:"callee_name"`
	Receiver         string   `json:"receiver,omitempty"`
	File             string   `json:"file"`
	Line             int      `json:"line"`
	Column           int      `json:"column"`
	ArgCount         int      `json:"arg_count"`
	Resolved         bool     `json:"resolved"`
	Candidates       []string `json:"candidates,omitempty"`
	Confidence       float64  `json:"confidence"`
	Reason           string   `json:"reason,omitempty"`
	UnresolvedReason string   `json:"unresolved_reason,omitempty"`
}

// DataAccessFact is one table access attributed to a function.
type DataAccessFact struct {
	Table      string   `json:"table"`
	Operation  string   `json:"operation"`
	Fields     []string `json:"fields,omitempty"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Confidence float64  `json:"confidence"`
	Framework  string   `json:"framework,omitempty"`
}

// Stats summarizes one build.
type Stats struct {
	FilesProcessed  int            `json:"files_processed"`
	FallbackFiles   int            `json:"fallback_files"`
	TotalFunctions  int            `json:"total_functions"`
	TotalCalls      int            `json:"total_calls"`
	ResolvedCalls   int            `json:"resolved_calls"`
	UnresolvedCalls int            `json:"unresolved_calls"`
	ResolutionRate  float64        `json:"resolution_rate"`
	EntryPoints     int            `json:"entry_points"`
	DataAccessors   int            `json:"data_accessors"`
	Languages       map[string]int `json:"languages,omitempty"`
	DurationMS      int64          `json:"duration_ms"`
}

// CallGraph is the persisted, versioned call graph document. Once built it
// is an immutable shared-read snapshot; queries never mutate it and a
// rebuild swaps in a whole new value.
type CallGraph struct {
	Schema        string                     `json:"schema"`
	BuildID       string                     `json:"build_id"`
	GeneratedAt   time.Time                  `json:"generated_at"`
	ProjectRoot   string                     `json:"project_root"`
	Functions     map[string]*FunctionRecord `json:"functions"`
	EntryPoints   []string                   `json:"entry_points"`
	DataAccessors []string                   `json:"data_accessors"`
	Stats         Stats                      `json:"stats"`
}

// Function returns the record for an id, or nil.
func (g *CallGraph) Function(id string) *FunctionRecord {
	return g.Functions[id]
}

// FunctionID derives the stable identifier for a function: the relative
// file path, the simple name, and the declaration line, colon-joined.
func FunctionID(file, name string, startLine int) string {
	return fmt.Sprintf("%s:%s:%d", file, name, startLine)
}

// SplitFunctionID breaks an id back into its parts. The file segment may
// itself contain colons, so the split works from the right.
func SplitFunctionID(id string) (file, name string, startLine int, err error) {
	last := strings.LastIndexByte(id, ':')
	if last < 0 {
		return "", "", 0, fmt.Errorf("malformed function id %q", id)
	}
	startLine, err = strconv.Atoi(id[last+1:])
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed function id %q", id)
	}
	rest := id[:last]
	mid := strings.LastIndexByte(rest, ':')
	if mid < 0 {
		return "", "", 0, fmt.Errorf("malformed function id %q", id)
	}
	return rest[:mid], rest[mid+1:], startLine, nil
}

// CodeLocation names a position in the analyzed project.
type CodeLocation struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Column     int    `json:"column,omitempty"`
	FunctionID string `json:"function_id,omitempty"`
}

// CallPathNode is one hop on a reconstructed call path.
type CallPathNode struct {
	FunctionID   string `json:"function_id"`
	FunctionName string `json:"function_name"`
	File         string `json:"file"`
	Line         int    `json:"line"`
}

// ReachableAccess is one data access found by a forward reachability
// query, with the first path that reached it.
type ReachableAccess struct {
	Table      string         `json:"table"`
	Operation  string         `json:"operation"`
	Fields     []string       `json:"fields,omitempty"`
	File       string         `json:"file"`
	Line       int            `json:"line"`
	Confidence float64        `json:"confidence"`
	Framework  string         `json:"framework,omitempty"`
	Path       []CallPathNode `json:"path"`
	Depth      int            `json:"depth"`
}

// UnknownReach marks an unresolved outgoing edge crossed during a forward
// query when the caller asked to see them.
type UnknownReach struct {
	CalleeName string `json:"callee_name"`
	FromID     string `json:"from_id"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Depth      int    `json:"depth"`
}

// ReachabilityOptions bound a forward query. MaxDepth zero means
// unlimited; Tables restricts facts to an allow-list; SensitiveOnly keeps
// only facts on tables the searcher was configured to treat as sensitive.
type ReachabilityOptions struct {
	MaxDepth          int
	SensitiveOnly     bool
	Tables            []string
	IncludeUnresolved bool
}

// ReachabilityResult is a forward query outcome, ordered root to leaf.
// MaxDepth reports the deepest level actually visited.
type ReachabilityResult struct {
	Origin             CodeLocation      `json:"origin"`
	ReachableAccess    []ReachableAccess `json:"reachable_access"`
	Tables             []string          `json:"tables"`
	Fields             []string          `json:"fields,omitempty"`
	Unknown            []UnknownReach    `json:"unknown,omitempty"`
	MaxDepth           int               `json:"max_depth"`
	FunctionsTraversed int               `json:"functions_traversed"`
}

// InverseOptions bound an inverse query: which table (and optionally
// field) to trace back to entry points.
type InverseOptions struct {
	Table    string
	Field    string
	MaxDepth int
}

// InverseAccessPath is one representative path from an entry point down to
// a matching data access.
type InverseAccessPath struct {
	EntryPoint      string         `json:"entry_point"`
	Path            []CallPathNode `json:"path"`
	AccessTable     string         `json:"access_table"`
	AccessOperation string         `json:"access_operation"`
	AccessFields    []string       `json:"access_fields,omitempty"`
	AccessFile      string         `json:"access_file"`
	AccessLine      int            `json:"access_line"`
}

// InverseResult is an inverse query outcome: every entry point that can
// reach the target, one representative path per (entry point, access) pair.
type InverseResult struct {
	TargetTable    string              `json:"target_table"`
	TargetField    string              `json:"target_field,omitempty"`
	AccessPaths    []InverseAccessPath `json:"access_paths"`
	EntryPoints    []string            `json:"entry_points"`
	TotalAccessors int                 `json:"total_accessors"`
}

// Change kinds accepted by the impact analyzer.
const (
	ChangeSignature  = "signature-change"
	ChangeReturnType = "return-type-change"
	ChangeRename     = "rename"
	ChangeDeletion   = "deletion"
	ChangeBehavior   = "behavior-change"
)

// ImpactOptions describe the proposed change being analyzed.
type ImpactOptions struct {
	ChangeKind string
	MaxDepth   int
}

// ImpactedCaller is one function affected by a change, directly or through
// intermediate calls.
type ImpactedCaller struct {
	FunctionID   string `json:"function_id"`
	FunctionName string `json:"function_name"`
	File         string `json:"file"`
	Line         int    `json:"line"`
	Depth        int    `json:"depth"`
	Transitive   bool   `json:"transitive"`
	WouldBreak   bool   `json:"would_break"`
}

// ImpactResult classifies the downstream effect of changing one function.
type ImpactResult struct {
	TargetID            string           `json:"target_id"`
	TargetName          string           `json:"target_name"`
	ChangeKind          string           `json:"change_kind"`
	DirectCallers       []ImpactedCaller `json:"direct_callers"`
	TransitiveCallers   []ImpactedCaller `json:"transitive_callers"`
	AffectedEntryPoints []string         `json:"affected_entry_points"`
	AffectedTests       []string         `json:"affected_tests"`
	BlastRadius         string           `json:"blast_radius"`
}

// buildTimestamp returns the time a build stamps into the document.
func buildTimestamp() time.Time {
	return time.Now().UTC()
}
