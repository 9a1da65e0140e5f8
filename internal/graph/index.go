package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// Index holds the name lookups the resolver reads. It is built once at
// assembly and treated as read-only afterwards, which is what allows
// references to be resolved in parallel.
type Index struct {
	byQualified map[string][]string                // qualified name -> function ids
	bySimple    map[string][]string                // simple name -> function ids
	byFile      map[string][]string                // file -> function ids, by start line
	fileImports map[string][]extraction.ImportInfo // file -> its imports
	classFiles  map[string][]string                // class name -> files declaring it
	filesByStem map[string][]string                // extension-less path -> files
}

func newIndex() *Index {
	return &Index{
		byQualified: make(map[string][]string),
		bySimple:    make(map[string][]string),
		byFile:      make(map[string][]string),
		fileImports: make(map[string][]extraction.ImportInfo),
		classFiles:  make(map[string][]string),
		filesByStem: make(map[string][]string),
	}
}

func (ix *Index) addFunction(fn *FunctionRecord) {
	ix.bySimple[fn.Name] = append(ix.bySimple[fn.Name], fn.ID)
	ix.byFile[fn.File] = append(ix.byFile[fn.File], fn.ID)
	if fn.QualifiedName != "" {
		ix.byQualified[fn.QualifiedName] = append(ix.byQualified[fn.QualifiedName], fn.ID)
	}
}

func (ix *Index) addFile(file string, imports []extraction.ImportInfo, classes []extraction.ClassInfo) {
	ix.fileImports[file] = imports
	for _, class := range classes {
		ix.classFiles[class.Name] = append(ix.classFiles[class.Name], file)
	}

	stem := strings.TrimSuffix(file, path.Ext(file))
	ix.filesByStem[stem] = append(ix.filesByStem[stem], file)
	// "pkg/index.ts" also answers to "pkg".
	if base := path.Base(stem); base == "index" || base == "__init__" || base == "mod" {
		dir := path.Dir(stem)
		if dir != "." {
			ix.filesByStem[dir] = append(ix.filesByStem[dir], file)
		}
	}
}

// finalize sorts every id list so lookups are deterministic across builds.
func (ix *Index) finalize() {
	for _, ids := range ix.byQualified {
		sort.Strings(ids)
	}
	for _, ids := range ix.bySimple {
		sort.Strings(ids)
	}
	for _, files := range ix.classFiles {
		sort.Strings(files)
	}
	for _, files := range ix.filesByStem {
		sort.Strings(files)
	}
}

// Qualified returns the ids sharing a qualified name.
func (ix *Index) Qualified(name string) []string {
	return ix.byQualified[name]
}

// Simple returns the ids sharing a simple name.
func (ix *Index) Simple(name string) []string {
	return ix.bySimple[name]
}

// InFile returns the function ids declared in a file, ordered by line.
func (ix *Index) InFile(file string) []string {
	return ix.byFile[file]
}

// Imports returns a file's import statements.
func (ix *Index) Imports(file string) []extraction.ImportInfo {
	return ix.fileImports[file]
}

// HasClass reports whether any file declares the named class.
func (ix *Index) HasClass(name string) bool {
	return len(ix.classFiles[name]) > 0
}

// ResolveImportSource maps an import source to indexed project files. A
// relative source resolves against the importing file's directory; a
// dotted or path-like source resolves against path stems. An empty result
// means the source is outside the project.
func (ix *Index) ResolveImportSource(fromFile, source string) []string {
	if source == "" {
		return nil
	}

	if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") {
		stem := path.Join(path.Dir(fromFile), source)
		return ix.lookupStem(stem)
	}

	// "pkg.module" and "pkg::module" spellings normalize to path form.
	normalized := strings.ReplaceAll(strings.ReplaceAll(source, ".", "/"), "::", "/")
	if files := ix.lookupStem(normalized); len(files) > 0 {
		return files
	}
	return ix.lookupStem(source)
}

func (ix *Index) lookupStem(stem string) []string {
	stem = path.Clean(stem)
	if files, ok := ix.filesByStem[stem]; ok {
		return files
	}
	// Imports frequently omit a leading source directory; try suffix
	// matches before giving up.
	var matches []string
	for candidate, files := range ix.filesByStem {
		if strings.HasSuffix(candidate, "/"+stem) {
			matches = append(matches, files...)
		}
	}
	sort.Strings(matches)
	return matches
}
