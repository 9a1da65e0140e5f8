package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGraphNotBuilt signals that no persisted graph exists yet. Callers
// should run a build before querying.
var ErrGraphNotBuilt = errors.New("call graph not built: run a build first")

// ErrSchemaVersion signals that a persisted graph was written by an
// incompatible schema and must be rebuilt rather than partially served.
var ErrSchemaVersion = errors.New("call graph schema version mismatch: rebuild required")

// ErrFunctionNotFound signals that a queried function name or id is not in
// the graph. Returned wrapped in a NotFoundError carrying suggestions.
var ErrFunctionNotFound = errors.New("function not found")

// NotFoundError is a recoverable query failure: the id, name, or table a
// consumer asked about is not in the graph. It carries a remediation hint
// and, when the name was close to known functions, candidate matches.
type NotFoundError struct {
	Kind       string // "function", "file", or "table"
	Query      string
	Hint       string
	Candidates []string
}

// Is lets errors.Is match function lookups against ErrFunctionNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrFunctionNotFound && e.Kind == "function"
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Query)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if len(e.Candidates) > 0 {
		msg += " (did you mean: " + strings.Join(e.Candidates, ", ") + ")"
	}
	return msg
}

// AmbiguousError is a recoverable query failure: a simple name matched
// several functions and the caller must qualify with a file.
type AmbiguousError struct {
	Query   string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d functions, qualify with a file: %s",
		e.Query, len(e.Matches), strings.Join(e.Matches, ", "))
}
