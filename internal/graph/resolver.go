package graph

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Fixed confidence tiers per match strategy.
const (
	confidenceExactSameFile = 0.95
	confidenceExactImport   = 0.9
	confidenceClassScoped   = 0.8
	confidenceGlobalUnique  = 0.7
	confidenceAmbiguousBase = 0.7
	confidenceAmbiguousStep = 0.05
	confidenceAmbiguousMin  = 0.5
)

// constructorSuffixes are the per-language constructor spellings tried
// when a call names a class directly.
var constructorSuffixes = []string{
	".constructor", ".__init__", ".initialize", ".new", ".__construct",
}

// Resolver matches call references against the assembled index. The index
// is read-only during resolution, so references are resolved in parallel;
// each worker accumulates back-references locally and the maps are merged
// once after all workers finish.
type Resolver struct {
	index   *Index
	workers int
}

// NewResolver creates a resolver. Non-positive workers means one per CPU.
func NewResolver(index *Index, workers int) *Resolver {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Resolver{index: index, workers: workers}
}

type resolveTask struct {
	caller *FunctionRecord
	ref    *CallReference
}

// Resolve attempts every unresolved reference in the graph, in parallel,
// then writes the merged back-references onto each resolved callee.
func (r *Resolver) Resolve(ctx context.Context, graph *CallGraph) error {
	ids := make([]string, 0, len(graph.Functions))
	for id := range graph.Functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var tasks []resolveTask
	for _, id := range ids {
		fn := graph.Functions[id]
		for _, ref := range fn.Calls {
			tasks = append(tasks, resolveTask{caller: fn, ref: ref})
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	workers := r.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	chunkSize := (len(tasks) + workers - 1) / workers
	backrefs := make([]map[string][]string, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(tasks) {
			end = len(tasks)
		}
		chunk := tasks[start:end]
		slot := w

		g.Go(func() error {
			local := make(map[string][]string)
			for _, task := range chunk {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if calleeID, ok := r.resolveOne(task.caller, task.ref); ok {
					local[calleeID] = append(local[calleeID], task.caller.ID)
				}
			}
			backrefs[slot] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := make(map[string]map[string]bool)
	for _, local := range backrefs {
		for calleeID, callers := range local {
			set := merged[calleeID]
			if set == nil {
				set = make(map[string]bool)
				merged[calleeID] = set
			}
			for _, caller := range callers {
				set[caller] = true
			}
		}
	}
	for calleeID, callers := range merged {
		fn := graph.Functions[calleeID]
		for caller := range callers {
			fn.CalledBy = append(fn.CalledBy, caller)
		}
	}

	return nil
}

// resolveOne tries the match strategies in specificity order. It writes
// the outcome onto the reference and reports the callee id on success.
func (r *Resolver) resolveOne(caller *FunctionRecord, ref *CallReference) (string, bool) {
	if reason, dynamic := classifyDynamic(ref, caller); dynamic {
		ref.Confidence = 0
		ref.UnresolvedReason = reason
		return "", false
	}

	// (a) Exact qualified name in the caller's own file.
	if ids := idsInFile(r.index.Qualified(ref.CalleeName), caller.File); len(ids) > 0 {
		return applyMatch(ref, ids, confidenceExactSameFile, ReasonExactSameFile)
	}

	// (a) Exact name through a resolved import binding.
	if calleeID, done := r.resolveViaImport(caller, ref); done {
		return calleeID, calleeID != ""
	}

	// (b) Class-scoped match through a known receiver class.
	if calleeID, done := r.resolveClassScoped(caller, ref); done {
		return calleeID, calleeID != ""
	}

	// (b) A bare call naming a known class targets its constructor.
	if ref.Receiver == "" && r.index.HasClass(ref.CalleeName) {
		for _, suffix := range constructorSuffixes {
			if ids := r.index.Qualified(ref.CalleeName + suffix); len(ids) > 0 {
				return applyMatch(ref, ids, confidenceClassScoped, ReasonClassScoped)
			}
		}
	}

	// (c) Global simple-name match.
	ids := r.index.Simple(ref.CalleeName)
	switch len(ids) {
	case 0:
		ref.Confidence = 0
		return "", false
	case 1:
		return applyMatch(ref, ids, confidenceGlobalUnique, ReasonGlobalUnique)
	default:
		markAmbiguous(ref, ids, ReasonGlobalAmbiguous)
		return "", false
	}
}

// resolveViaImport matches the callee against the caller file's import
// bindings. The second return is true when the import context fully
// decided the outcome, resolved or not.
func (r *Resolver) resolveViaImport(caller *FunctionRecord, ref *CallReference) (string, bool) {
	recv := receiverRoot(ref.Receiver)

	for _, imp := range r.index.Imports(caller.File) {
		var bound bool
		switch {
		case ref.Receiver == "":
			bound = imp.Default == ref.CalleeName || containsName(imp.Named, ref.CalleeName)
		case imp.Namespace != "" && imp.Namespace == recv:
			bound = true
		}
		if !bound {
			continue
		}

		files := r.index.ResolveImportSource(caller.File, imp.Source)
		if len(files) == 0 {
			// The name is bound to a module outside the project.
			ref.Confidence = 0
			ref.UnresolvedReason = UnresolvedExternalLibrary
			return "", true
		}

		var ids []string
		for _, file := range files {
			ids = append(ids, idsInFile(r.index.Simple(ref.CalleeName), file)...)
		}
		switch len(ids) {
		case 0:
			// Re-exported or renamed on the far side; let the broader
			// strategies have a go.
			return "", false
		case 1:
			id, ok := applyMatch(ref, ids, confidenceExactImport, ReasonExactImport)
			return id, ok
		default:
			markAmbiguous(ref, ids, ReasonExactImport)
			return "", true
		}
	}

	return "", false
}

// resolveClassScoped matches method calls whose receiver class is known:
// this/self/cls resolve to the caller's own class, other receivers to a
// declared class of the same name.
func (r *Resolver) resolveClassScoped(caller *FunctionRecord, ref *CallReference) (string, bool) {
	recv := receiverRoot(ref.Receiver)
	if recv == "" {
		return "", false
	}

	var class string
	switch {
	case recv == "this" || recv == "self" || recv == "cls":
		class = callerClass(caller)
	case r.index.HasClass(recv):
		class = recv
	}
	if class == "" {
		return "", false
	}

	ids := r.index.Qualified(class + "." + ref.CalleeName)
	if len(ids) == 0 && ref.CalleeName == "new" {
		// Ruby constructors answer to new but are declared initialize.
		ids = r.index.Qualified(class + ".initialize")
	}

	switch len(ids) {
	case 0:
		return "", false
	case 1:
		id, ok := applyMatch(ref, ids, confidenceClassScoped, ReasonClassScoped)
		return id, ok
	default:
		// Same class declared in several files; prefer the caller's own.
		if inFile := idsInFile(ids, caller.File); len(inFile) == 1 {
			id, ok := applyMatch(ref, inFile, confidenceClassScoped, ReasonClassScoped)
			return id, ok
		}
		markAmbiguous(ref, ids, ReasonClassScoped)
		return "", true
	}
}

// applyMatch writes a successful unique match, or the ambiguous outcome
// when several ids share the key.
func applyMatch(ref *CallReference, ids []string, confidence float64, reason string) (string, bool) {
	if len(ids) == 1 {
		ref.CalleeID = ids[0]
		ref.Resolved = true
		ref.Candidates = []string{ids[0]}
		ref.Confidence = confidence
		ref.Reason = reason
		return ids[0], true
	}
	markAmbiguous(ref, ids, reason)
	return "", false
}

// markAmbiguous records every candidate and lowers confidence as the set
// grows. The reference stays unresolved; consumers see the full set.
func markAmbiguous(ref *CallReference, ids []string, reason string) {
	ref.Resolved = false
	ref.Candidates = append([]string(nil), ids...)
	ref.Reason = reason

	confidence := confidenceAmbiguousBase - confidenceAmbiguousStep*float64(len(ids)-1)
	if confidence < confidenceAmbiguousMin {
		confidence = confidenceAmbiguousMin
	}
	ref.Confidence = confidence
}

// idsInFile filters ids to those declared in one file. Ids embed their
// file, so no record lookup is needed.
func idsInFile(ids []string, file string) []string {
	var out []string
	for _, id := range ids {
		if f, _, _, err := SplitFunctionID(id); err == nil && f == file {
			out = append(out, id)
		}
	}
	return out
}

// callerClass extracts the class prefix from a method's qualified name.
func callerClass(caller *FunctionRecord) string {
	qualified := caller.QualifiedName
	suffix := "." + caller.Name
	if len(qualified) > len(suffix) && qualified[len(qualified)-len(suffix):] == suffix {
		return qualified[:len(qualified)-len(suffix)]
	}
	return ""
}

func containsName(names []string, target string) bool {
	for _, name := range names {
		if name == target {
			return true
		}
	}
	return false
}
