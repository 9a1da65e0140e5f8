package extraction

import "time"

// Extraction strategies recorded in Quality.Strategy.
const (
	StrategyStructural = "structural"
	StrategyRegex      = "regex"
	StrategyMerged     = "merged"
)

// Data access operation kinds.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
)

// FileExtraction is the complete set of facts pulled from one source file.
type FileExtraction struct {
	Path       string
	Language   string
	Functions  []FunctionInfo
	Classes    []ClassInfo
	Imports    []ImportInfo
	Exports    []ExportInfo
	Calls      []CallSite
	DataAccess []DataAccess
	Errors     []ParseError
	Quality    Quality
}

// ItemCount returns the number of extracted facts, used for coverage judgment.
func (f *FileExtraction) ItemCount() int {
	return len(f.Functions) + len(f.Classes) + len(f.Imports) + len(f.Exports) + len(f.Calls)
}

// FunctionInfo represents one function or method definition.
type FunctionInfo struct {
	Name          string
	QualifiedName string // "Class.method" for methods, otherwise equal to Name
	Parameters    []Parameter
	ReturnType    string
	Exported      bool
	Async         bool
	Generator     bool
	Constructor   bool
	Decorators    []string // "@Name" form
	DocComment    string
	StartLine     int
	EndLine       int
}

// Parameter represents one declared function parameter.
type Parameter struct {
	Name    string
	Type    string
	Default string
	Rest    bool
}

// CallSite represents one call expression.
type CallSite struct {
	Callee   string // callee name as written (rightmost segment for member calls)
	Receiver string // receiver expression text for method calls, empty for direct calls
	ArgCount int
	Line     int
	Column   int
}

// ImportInfo represents one import statement.
type ImportInfo struct {
	Source    string
	Named     []string
	Default   string
	Namespace string
	TypeOnly  bool
	Line      int
}

// ExportInfo represents one exported symbol.
type ExportInfo struct {
	Name         string
	OriginalName string // set for aliased re-exports
	FromSource   string // set for re-exports from another module
	Default      bool
	TypeOnly     bool
	Line         int
}

// ClassInfo represents one class or type declaration.
type ClassInfo struct {
	Name       string
	Extends    string
	Implements []string
	Exported   bool
	Abstract   bool
	Decorators []string
	StartLine  int
	EndLine    int
}

// DataAccess represents one detected data-access fact (table read/write/delete).
type DataAccess struct {
	Table      string
	Operation  string // OpRead, OpWrite, or OpDelete
	Fields     []string
	Line       int
	Confidence float64
	Framework  string // ORM/driver name when recognized, empty otherwise
}

// ParseError records a recoverable extraction problem within a file.
type ParseError struct {
	Message string
	Line    int
}

// Quality describes how a file's extraction was produced and how much to
// trust it. It informs assembly-time weighting only; query logic never
// consults it.
type Quality struct {
	Strategy     string  // StrategyStructural, StrategyRegex, or StrategyMerged
	Coverage     float64 // [0,1] estimate of how completely the file was understood
	ParseErrors  int
	ItemCount    int
	UsedFallback bool
	Elapsed      time.Duration
}
