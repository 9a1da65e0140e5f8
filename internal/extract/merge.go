package extract

import (
	"github.com/callscope/callscope/internal/extract/extraction"
)

type lineKey struct {
	name string
	line int
}

// mergeExtractions combines the structural result with the regex fallback
// result for the same file. Primary items are kept verbatim; a fallback
// item is added only when no primary item shares its deduplication key.
// The merge is pure: neither input is modified.
func mergeExtractions(primary, fallback *extraction.FileExtraction) *extraction.FileExtraction {
	out := &extraction.FileExtraction{
		Path:     primary.Path,
		Language: primary.Language,
		Errors:   primary.Errors,
	}

	seen := make(map[lineKey]bool, len(primary.Functions))
	for _, fn := range primary.Functions {
		seen[lineKey{fn.Name, fn.StartLine}] = true
		out.Functions = append(out.Functions, fn)
	}
	for _, fn := range fallback.Functions {
		if !seen[lineKey{fn.Name, fn.StartLine}] {
			out.Functions = append(out.Functions, fn)
		}
	}

	seen = make(map[lineKey]bool, len(primary.Calls))
	for _, call := range primary.Calls {
		seen[lineKey{call.Callee, call.Line}] = true
		out.Calls = append(out.Calls, call)
	}
	for _, call := range fallback.Calls {
		if !seen[lineKey{call.Callee, call.Line}] {
			out.Calls = append(out.Calls, call)
		}
	}

	seen = make(map[lineKey]bool, len(primary.Imports))
	for _, imp := range primary.Imports {
		seen[lineKey{imp.Source, imp.Line}] = true
		out.Imports = append(out.Imports, imp)
	}
	for _, imp := range fallback.Imports {
		if !seen[lineKey{imp.Source, imp.Line}] {
			out.Imports = append(out.Imports, imp)
		}
	}

	seen = make(map[lineKey]bool, len(primary.Exports))
	for _, exp := range primary.Exports {
		seen[lineKey{exp.Name, exp.Line}] = true
		out.Exports = append(out.Exports, exp)
	}
	for _, exp := range fallback.Exports {
		if !seen[lineKey{exp.Name, exp.Line}] {
			out.Exports = append(out.Exports, exp)
		}
	}

	seen = make(map[lineKey]bool, len(primary.Classes))
	for _, class := range primary.Classes {
		seen[lineKey{class.Name, class.StartLine}] = true
		out.Classes = append(out.Classes, class)
	}
	for _, class := range fallback.Classes {
		if !seen[lineKey{class.Name, class.StartLine}] {
			out.Classes = append(out.Classes, class)
		}
	}

	return out
}
