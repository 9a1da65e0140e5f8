package graph

import (
	"log"
	"sort"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// Assembler turns per-file extraction results into an initial CallGraph:
// every function gets a record and an id, every call site is attributed to
// its enclosing function, and nothing is resolved yet.
type Assembler struct {
	registry *EntryPointRegistry
}

// NewAssembler creates an assembler using the given entry-point registry.
func NewAssembler(registry *EntryPointRegistry) *Assembler {
	if registry == nil {
		registry = DefaultEntryPointRegistry()
	}
	return &Assembler{registry: registry}
}

// Assemble builds the graph and its name index from all file results. The
// returned references all have Resolved=false; the resolver fills them in.
func (a *Assembler) Assemble(projectRoot string, files []*extraction.FileExtraction) (*CallGraph, *Index) {
	graph := &CallGraph{
		Schema:      SchemaVersion,
		GeneratedAt: buildTimestamp(),
		ProjectRoot: projectRoot,
		Functions:   make(map[string]*FunctionRecord),
	}
	index := newIndex()

	for _, file := range files {
		a.assembleFile(graph, index, file)
	}

	index.finalize()

	graph.Stats.FilesProcessed = len(files)
	graph.Stats.TotalFunctions = len(graph.Functions)
	for _, fn := range graph.Functions {
		graph.Stats.TotalCalls += len(fn.Calls)
	}
	graph.Stats.Languages = make(map[string]int)
	for _, file := range files {
		graph.Stats.Languages[file.Language]++
		if file.Quality.UsedFallback {
			graph.Stats.FallbackFiles++
		}
	}

	return graph, index
}

func (a *Assembler) assembleFile(graph *CallGraph, index *Index, file *extraction.FileExtraction) {
	records := make([]*FunctionRecord, 0, len(file.Functions))

	for _, fn := range file.Functions {
		id := FunctionID(file.Path, fn.Name, fn.StartLine)
		if _, exists := graph.Functions[id]; exists {
			// Merge artifacts can repeat a declaration; the first wins.
			log.Printf("[assembler] duplicate function id %s, keeping first", id)
			continue
		}

		record := &FunctionRecord{
			ID:            id,
			Name:          fn.Name,
			QualifiedName: fn.QualifiedName,
			File:          file.Path,
			Language:      file.Language,
			StartLine:     fn.StartLine,
			EndLine:       fn.EndLine,
			Exported:      fn.Exported,
			Async:         fn.Async,
			Constructor:   fn.Constructor,
			ReturnType:    fn.ReturnType,
			Decorators:    fn.Decorators,
			Parameters:    convertParameters(fn.Parameters),
		}
		if record.QualifiedName == "" {
			record.QualifiedName = record.Name
		}

		if kind, ok := a.registry.Classify(record); ok {
			record.EntryPoint = true
			record.EntryPointKind = kind
		}

		graph.Functions[id] = record
		index.addFunction(record)
		records = append(records, record)
	}

	index.addFile(file.Path, file.Imports, file.Classes)

	// Call sites and data access attach to the innermost function whose
	// span covers their line. Facts outside any function are module-level
	// work with no record to own them, so they are dropped.
	for _, call := range file.Calls {
		owner := enclosingRecord(records, call.Line)
		if owner == nil {
			continue
		}
		owner.Calls = append(owner.Calls, &CallReference{
			CallerID:   owner.ID,
			CalleeName: call.Callee,
			Receiver:   call.Receiver,
			File:       file.Path,
			Line:       call.Line,
			Column:     call.Column,
			ArgCount:   call.ArgCount,
		})
	}

	// Fallback-derived extractions weight their facts down by coverage.
	factWeight := 1.0
	if file.Quality.UsedFallback {
		factWeight = file.Quality.Coverage
	}
	for _, access := range file.DataAccess {
		owner := enclosingRecord(records, access.Line)
		if owner == nil {
			continue
		}
		owner.DataAccess = append(owner.DataAccess, DataAccessFact{
			Table:      access.Table,
			Operation:  access.Operation,
			Fields:     access.Fields,
			File:       file.Path,
			Line:       access.Line,
			Confidence: access.Confidence * factWeight,
			Framework:  access.Framework,
		})
	}
}

// enclosingRecord finds the innermost function covering a line. Nested
// declarations both cover the line; the smaller span wins.
func enclosingRecord(records []*FunctionRecord, line int) *FunctionRecord {
	var best *FunctionRecord
	bestSpan := 0
	for _, record := range records {
		if line < record.StartLine || line > record.EndLine {
			continue
		}
		span := record.EndLine - record.StartLine
		if best == nil || span < bestSpan {
			best = record
			bestSpan = span
		}
	}
	return best
}

func convertParameters(params []extraction.Parameter) []Parameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]Parameter, len(params))
	for i, p := range params {
		out[i] = Parameter{Name: p.Name, Type: p.Type, Default: p.Default, Rest: p.Rest}
	}
	return out
}

// finalizeGraph runs after resolution: it flags exported functions nobody
// calls as entry points, collects the entry-point and data-accessor id
// lists, and fills in the resolution statistics.
func finalizeGraph(graph *CallGraph) {
	resolved := 0
	total := 0

	ids := make([]string, 0, len(graph.Functions))
	for id := range graph.Functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fn := graph.Functions[id]
		sort.Strings(fn.CalledBy)

		for _, call := range fn.Calls {
			total++
			if call.Resolved {
				resolved++
			}
		}
	}

	for _, id := range ids {
		fn := graph.Functions[id]
		if !fn.EntryPoint && fn.Exported && len(fn.CalledBy) == 0 {
			fn.EntryPoint = true
			fn.EntryPointKind = EntryExportedRoot
		}
		if fn.EntryPoint {
			graph.EntryPoints = append(graph.EntryPoints, id)
		}
		if len(fn.DataAccess) > 0 {
			graph.DataAccessors = append(graph.DataAccessors, id)
		}
	}

	graph.Stats.TotalCalls = total
	graph.Stats.ResolvedCalls = resolved
	graph.Stats.UnresolvedCalls = total - resolved
	if total > 0 {
		graph.Stats.ResolutionRate = float64(resolved) / float64(total)
	}
	graph.Stats.EntryPoints = len(graph.EntryPoints)
	graph.Stats.DataAccessors = len(graph.DataAccessors)
}
