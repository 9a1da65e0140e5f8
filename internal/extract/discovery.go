package extract

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery walks a project tree and selects the source files to extract.
// Paths are returned relative to the root with forward slashes, the form
// function ids embed.
type Discovery struct {
	rootDir         string
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
}

// NewDiscovery creates a discovery instance. An empty include list accepts
// every file in a supported language.
func NewDiscovery(rootDir string, includePatterns, ignorePatterns []string) (*Discovery, error) {
	d := &Discovery{
		rootDir: rootDir,
	}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		d.includePatterns = append(d.includePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		d.ignorePatterns = append(d.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return d, nil
}

// Discover walks the tree and returns matching source files in sorted
// order, so repeated builds see files in the same sequence.
func (d *Discovery) Discover() ([]string, error) {
	files := []string{}

	err := filepath.Walk(d.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(d.rootDir, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if d.shouldIgnore(relPath) && relPath != "." {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Selects(relPath) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Selects reports whether a root-relative path would be picked up by
// Discover. Watch mode uses this to decide if a changed file warrants a
// rebuild.
func (d *Discovery) Selects(relPath string) bool {
	if d.shouldIgnore(relPath) {
		return false
	}
	if DetectLanguage(relPath) == "" {
		return false
	}
	if len(d.includePatterns) > 0 && !matchesAnyPattern(relPath, d.includePatterns) {
		return false
	}
	return true
}

// shouldIgnore checks if a path matches any ignore pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	// The graph's own state directory is never indexed.
	if relPath == ".callscope" || strings.HasPrefix(relPath, ".callscope/") {
		return true
	}

	if matchesAnyPattern(relPath, d.ignorePatterns) {
		return true
	}

	// A bare directory name should match its "dir/**" pattern too.
	return matchesAnyPattern(relPath+"/**", d.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
// Root-level paths also match "**/"-prefixed patterns with the prefix
// stripped, so "**/*.ts" covers both "index.ts" and "src/index.ts".
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

// DefaultIgnorePatterns are directories and file shapes no build wants.
var DefaultIgnorePatterns = []string{
	"node_modules/**",
	".git/**",
	"vendor/**",
	"dist/**",
	"build/**",
	"target/**",
	"__pycache__/**",
	".venv/**",
	"venv/**",
	"**/*.min.js",
	"**/*.d.ts",
}
