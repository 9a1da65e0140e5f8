package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/callscope/callscope/internal/config"
	"github.com/callscope/callscope/internal/graph"
)

// openSearcher loads configuration for the project root and opens a
// read-only searcher over the persisted call graph.
func openSearcher(rootDir string) (graph.Searcher, *config.Config, error) {
	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	storage, err := graph.NewStorage(config.Dir(rootDir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open graph storage: %w", err)
	}

	searcher, err := graph.NewSearcher(storage, graph.SearcherOptions{
		SensitiveTables:   cfg.Analysis.SensitiveTables,
		SevereEntryPoints: cfg.Impact.SevereEntryPoints,
		SevereCallers:     cfg.Impact.SevereCallers,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open searcher: %w", err)
	}

	return searcher, cfg, nil
}

// findTarget resolves a function argument to a single record, translating
// the query errors into actionable CLI messages.
func findTarget(searcher graph.Searcher, name, file string) (*graph.FunctionRecord, error) {
	fn, err := searcher.FindFunction(name, file)
	if err != nil {
		return nil, describeQueryError(err)
	}
	return fn, nil
}

// describeQueryError rewrites graph sentinel errors into messages that tell
// the user what to do next.
func describeQueryError(err error) error {
	if errors.Is(err, graph.ErrGraphNotBuilt) {
		return fmt.Errorf("no call graph found: run 'callscope build' first")
	}
	if errors.Is(err, graph.ErrSchemaVersion) {
		return fmt.Errorf("call graph was built by an incompatible version: run 'callscope build' again")
	}

	var ambiguous *graph.AmbiguousError
	if errors.As(err, &ambiguous) {
		return fmt.Errorf("%s\nUse --file to pick one, e.g. --file %s",
			ambiguous.Error(), fileOfID(ambiguous.Matches[0]))
	}

	return err
}

// fileOfID extracts the file segment from a function id for hint messages.
func fileOfID(id string) string {
	file, _, _, err := graph.SplitFunctionID(id)
	if err != nil {
		return id
	}
	return file
}

// printJSON writes a result as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// splitCommaList parses a comma-separated flag value into trimmed,
// non-empty entries.
func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
