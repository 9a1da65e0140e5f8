package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/callscope/callscope/internal/extract/extraction"
	"github.com/callscope/callscope/internal/extract/parsers"
)

// errParseTimeout marks a structural parse that exceeded the per-file budget.
var errParseTimeout = errors.New("structural parse timed out")

// fallbackCoverage is the trust placed in a regex-only extraction.
const fallbackCoverage = 0.5

// languageParser is the contract every structural parser satisfies. A nil
// extraction with a nil error means the input was unparseable.
type languageParser interface {
	Language() string
	ParseFile(ctx context.Context, filePath string, source []byte) (*extraction.FileExtraction, error)
}

// Extractor runs hybrid per-file extraction: a structural parse first, with
// a regex fallback when the parse fails, times out, or sees too little.
type Extractor struct {
	structural map[string]languageParser
	timeout    time.Duration
}

// NewExtractor creates an extractor with all language parsers registered.
// A non-positive timeout disables the per-file parse budget.
func NewExtractor(timeout time.Duration) *Extractor {
	e := &Extractor{
		structural: make(map[string]languageParser),
		timeout:    timeout,
	}

	e.register(parsers.NewTypeScriptParser())
	e.register(parsers.NewJavaScriptParser())
	e.register(parsers.NewPythonParser())
	e.register(parsers.NewGoParser())
	e.register(parsers.NewJavaParser())
	e.register(parsers.NewRubyParser())
	e.register(parsers.NewRustParser())
	e.register(parsers.NewCParser())
	e.register(parsers.NewCPPParser())
	e.register(parsers.NewPHPParser())

	return e
}

func (e *Extractor) register(p languageParser) {
	e.structural[p.Language()] = p
}

// SupportsLanguage reports whether a structural parser is registered for
// the language tag.
func (e *Extractor) SupportsLanguage(lang string) bool {
	_, ok := e.structural[lang]
	return ok
}

// ExtractFile extracts call-graph facts from one source file. Failures are
// absorbed into the result's error list and quality record; the returned
// extraction is never nil and an extraction problem never propagates as an
// error to the caller.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string, source []byte) *extraction.FileExtraction {
	start := time.Now()
	lang := DetectLanguage(filePath)

	var primary *extraction.FileExtraction
	var parseErr error
	if structural, ok := e.structural[lang]; ok {
		primary, parseErr = e.runStructural(ctx, structural, filePath, source)
	}

	structuralOK := parseErr == nil && primary != nil
	if structuralOK && !poorCoverage(primary, source) {
		primary.DataAccess = detectDataAccess(source)
		primary.Quality = extraction.Quality{
			Strategy:    extraction.StrategyStructural,
			Coverage:    structuralCoverage(primary),
			ParseErrors: len(primary.Errors),
			ItemCount:   primary.ItemCount(),
			Elapsed:     time.Since(start),
		}
		return primary
	}

	fallback, _ := parsers.NewFallbackParser(lang).ParseFile(ctx, filePath, source)

	var out *extraction.FileExtraction
	if structuralOK {
		out = mergeExtractions(primary, fallback)
		out.Quality.Strategy = extraction.StrategyMerged
		out.Quality.Coverage = 0.7*structuralCoverage(primary) + 0.3*fallbackCoverage
	} else {
		out = fallback
		if parseErr != nil {
			out.Errors = append(out.Errors, extraction.ParseError{
				Message: fmt.Sprintf("structural parse failed: %v", parseErr),
			})
		}
		out.Quality.Strategy = extraction.StrategyRegex
		out.Quality.Coverage = fallbackCoverage
	}

	out.DataAccess = detectDataAccess(source)
	out.Quality.UsedFallback = true
	out.Quality.ParseErrors = len(out.Errors)
	out.Quality.ItemCount = out.ItemCount()
	out.Quality.Elapsed = time.Since(start)
	return out
}

type parseOutcome struct {
	out *extraction.FileExtraction
	err error
}

// runStructural executes one structural parse under the per-file timeout.
// A panicking parser degrades that one file, never the batch.
func (e *Extractor) runStructural(ctx context.Context, p languageParser, filePath string, source []byte) (*extraction.FileExtraction, error) {
	done := make(chan parseOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- parseOutcome{err: fmt.Errorf("parser panic: %v", r)}
			}
		}()
		out, err := p.ParseFile(ctx, filePath, source)
		done <- parseOutcome{out: out, err: err}
	}()

	var timeoutC <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case outcome := <-done:
		return outcome.out, outcome.err
	case <-timeoutC:
		return nil, errParseTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// poorCoverage judges a structural result too thin to trust on its own:
// nothing was found in a file large enough that something should have been.
func poorCoverage(out *extraction.FileExtraction, source []byte) bool {
	return len(out.Functions) == 0 && len(out.Classes) == 0 && len(source) >= 200
}

// structuralCoverage discounts trust as parse errors accumulate.
func structuralCoverage(out *extraction.FileExtraction) float64 {
	coverage := 1.0 - 0.1*float64(len(out.Errors))
	if coverage < 0.5 {
		coverage = 0.5
	}
	return coverage
}

// SupportedExtensions lists the file extensions DetectLanguage recognizes.
func SupportedExtensions() []string {
	return []string{
		".ts", ".tsx", ".mts", ".cts",
		".js", ".jsx", ".mjs", ".cjs",
		".py", ".pyi",
		".go",
		".java",
		".rb", ".rake",
		".rs",
		".c", ".h",
		".cpp", ".cc", ".cxx", ".hpp", ".hh",
		".php",
	}
}

// DetectLanguage maps a file path to its language tag, or "" when the
// extension is not supported.
func DetectLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".py", ".pyi":
		return "python"
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".rb", ".rake":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp", ".hh":
		return "cpp"
	case ".php":
		return "php"
	default:
		return ""
	}
}
