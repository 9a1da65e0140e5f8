package parsers

import (
	"context"
	"regexp"
	"strings"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// fallbackPatterns holds the line-oriented patterns for one language family.
// Each function and class pattern captures the symbol name in group 1; each
// import pattern captures the module source in group 1.
type fallbackPatterns struct {
	functions []*regexp.Regexp
	classes   []*regexp.Regexp
	imports   []*regexp.Regexp
}

var (
	// callPattern matches "name(", "obj.name(", "obj->name(" and
	// "Scope::name(" on any line.
	callPattern = regexp.MustCompile(`\b([A-Za-z_]\w*(?:(?:\.|->|::)[A-Za-z_]\w*)*)\s*\(`)

	// callKeywords are control-flow and declaration words that look like
	// call sites to the pattern above.
	callKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true,
		"return": true, "catch": true, "function": true, "func": true,
		"def": true, "fn": true, "new": true, "sizeof": true,
		"typeof": true, "super": true, "defer": true, "go": true,
		"elsif": true, "unless": true, "match": true, "until": true,
	}

	tsFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`),
			regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`),
			regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|async\s+)*(\w+)\s*\([^)]*\)\s*(?::\s*[\w<>\[\]., |&]+)?\s*\{\s*$`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`),
			regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]`),
			regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]`),
		},
	}

	pythonFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*class\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import`),
			regexp.MustCompile(`^\s*import\s+([\w.]+)`),
		},
	}

	goFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"\s*$`),
		},
	}

	javaFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|final\s+|abstract\s+|synchronized\s+)*[\w<>\[\],.\s]+\s+(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w,\s.]+)?\s*\{\s*$`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:public\s+|abstract\s+|final\s+)*(?:class|interface|enum|record)\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`),
		},
	}

	rubyFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*def\s+(?:self\.)?([\w?!=]+)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:class|module)\s+([A-Z][\w:]*)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
		},
	}

	rustFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+(\w+)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([\w:]+)`),
		},
	}

	cFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^[\w\s*]+?[\s*](\w+)\s*\([^;{]*\)\s*\{\s*$`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:typedef\s+)?(?:struct|union|enum)\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`),
		},
	}

	phpFallback = fallbackPatterns{
		functions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|abstract\s+|final\s+)*function\s+(\w+)\s*\(`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:abstract\s+|final\s+)?(?:class|interface|trait)\s+(\w+)`),
		},
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*use\s+([\w\\]+)`),
		},
	}

	fallbacksByLanguage = map[string]fallbackPatterns{
		"typescript": tsFallback,
		"javascript": tsFallback,
		"python":     pythonFallback,
		"go":         goFallback,
		"java":       javaFallback,
		"ruby":       rubyFallback,
		"rust":       rustFallback,
		"c":          cFallback,
		"cpp":        cFallback,
		"php":        phpFallback,
	}
)

// FallbackParser scans source text line by line with language-family
// patterns. It recovers function, class, import, and call facts from files
// the structural parsers cannot handle.
type fallbackParser struct {
	lang     string
	patterns fallbackPatterns
}

// NewFallbackParser creates a regex scanner for the given language. Unknown
// languages get the C-like pattern family.
func NewFallbackParser(lang string) *fallbackParser {
	patterns, ok := fallbacksByLanguage[lang]
	if !ok {
		patterns = tsFallback
	}
	return &fallbackParser{lang: lang, patterns: patterns}
}

// Language returns the language tag this parser handles.
func (p *fallbackParser) Language() string {
	return p.lang
}

// ParseFile scans a source file and extracts what the patterns can see.
// It never fails: pathological input just yields fewer facts.
func (p *fallbackParser) ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error) {
	out := &extraction.FileExtraction{
		Path:     filePath,
		Language: p.lang,
	}

	lines := strings.Split(string(source), "\n")
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(p.lang, trimmed) {
			continue
		}

		definedName := p.scanDefinitions(line, lineNo, out)
		p.scanImports(line, lineNo, out)
		p.scanCalls(line, lineNo, definedName, out)
	}

	estimateFunctionSpans(out.Functions, len(lines))
	return out, nil
}

// scanDefinitions matches function and class declarations on one line and
// returns the declared function name, if any, so the call scanner can skip
// its own signature.
func (p *fallbackParser) scanDefinitions(line string, lineNo int, out *extraction.FileExtraction) string {
	for _, pattern := range p.patterns.functions {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if callKeywords[name] {
			continue
		}
		out.Functions = append(out.Functions, extraction.FunctionInfo{
			Name:          name,
			QualifiedName: name,
			Exported:      fallbackExported(p.lang, name, line),
			Async:         strings.Contains(line, "async "),
			StartLine:     lineNo,
			EndLine:       lineNo,
		})
		return name
	}

	for _, pattern := range p.patterns.classes {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out.Classes = append(out.Classes, extraction.ClassInfo{
			Name:      m[1],
			Exported:  fallbackExported(p.lang, m[1], line),
			StartLine: lineNo,
			EndLine:   lineNo,
		})
		return ""
	}

	return ""
}

func (p *fallbackParser) scanImports(line string, lineNo int, out *extraction.FileExtraction) {
	for _, pattern := range p.patterns.imports {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out.Imports = append(out.Imports, extraction.ImportInfo{
			Source: m[1],
			Line:   lineNo,
		})
		return
	}
}

func (p *fallbackParser) scanCalls(line string, lineNo int, definedName string, out *extraction.FileExtraction) {
	for _, m := range callPattern.FindAllStringSubmatchIndex(line, -1) {
		full := line[m[2]:m[3]]

		callee := full
		receiver := ""
		if idx := lastSeparator(full); idx >= 0 {
			callee = full[idx+separatorLen(full, idx):]
			receiver = full[:idx]
		}

		if callKeywords[callee] || callKeywords[full] {
			continue
		}
		if callee == definedName && receiver == "" {
			continue
		}

		out.Calls = append(out.Calls, extraction.CallSite{
			Callee:   callee,
			Receiver: receiver,
			Line:     lineNo,
			Column:   m[2] + 1,
		})
	}
}

// estimateFunctionSpans extends each function to the line before the next
// one, since the scanner only sees declaration lines. The last function
// runs to end of file.
func estimateFunctionSpans(functions []extraction.FunctionInfo, totalLines int) {
	for i := range functions {
		if i+1 < len(functions) {
			functions[i].EndLine = functions[i+1].StartLine - 1
		} else {
			functions[i].EndLine = totalLines
		}
		if functions[i].EndLine < functions[i].StartLine {
			functions[i].EndLine = functions[i].StartLine
		}
	}
}

// fallbackExported applies per-language visibility conventions to a bare
// declaration line.
func fallbackExported(lang, name, line string) bool {
	switch lang {
	case "go":
		return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
	case "python":
		return !strings.HasPrefix(name, "_")
	case "rust":
		return strings.Contains(line, "pub ")
	case "c", "cpp":
		return !strings.Contains(line, "static ")
	case "java", "php":
		return !strings.Contains(line, "private ") && !strings.Contains(line, "protected ")
	default:
		return true
	}
}

func isCommentLine(lang, trimmed string) bool {
	if strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "/*") {
		return true
	}
	// "#" starts a comment everywhere except C, where it introduces
	// preprocessor directives the import scanner needs.
	if strings.HasPrefix(trimmed, "#") {
		return lang != "c" && lang != "cpp"
	}
	return false
}

// lastSeparator finds the final ".", "->", or "::" in a dotted call chain.
func lastSeparator(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch {
		case s[i] == '.':
			return i
		case i > 0 && s[i-1] == '-' && s[i] == '>':
			return i - 1
		case i > 0 && s[i-1] == ':' && s[i] == ':':
			return i - 1
		}
	}
	return -1
}

func separatorLen(s string, idx int) int {
	if s[idx] == '.' {
		return 1
	}
	return 2
}
