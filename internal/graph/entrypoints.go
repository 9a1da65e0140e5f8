package graph

import (
	"path"
	"strings"
)

// EntryPointRegistry recognizes the shapes that make a function reachable
// from outside the project: framework decorators, handler naming, test
// conventions. The registry is fixed at construction; classification never
// mutates it.
type EntryPointRegistry struct {
	decorators map[string]string // normalized decorator -> entry point kind
}

// DefaultEntryPointRegistry returns the built-in decorator table.
func DefaultEntryPointRegistry() *EntryPointRegistry {
	r := &EntryPointRegistry{decorators: make(map[string]string)}

	for _, d := range []string{
		"get", "post", "put", "delete", "patch", "head", "options", "all",
		"route", "requestmapping", "getmapping", "postmapping",
		"putmapping", "deletemapping", "patchmapping", "api_view",
	} {
		r.decorators[d] = EntryHTTPHandler
	}
	for _, d := range []string{
		"eventlistener", "subscribe", "subscribemessage", "eventpattern",
		"messagepattern", "kafkalistener", "rabbitlistener", "sqslistener",
	} {
		r.decorators[d] = EntryEventHandler
	}
	for _, d := range []string{
		"scheduled", "cron", "interval", "timeout", "periodic_task",
	} {
		r.decorators[d] = EntryScheduledJob
	}
	for _, d := range []string{"test", "testcase", "fact", "theory"} {
		r.decorators[d] = EntryTest
	}
	for _, d := range []string{"command", "cli.command", "click.command"} {
		r.decorators[d] = EntryCLICommand
	}

	return r
}

// AddDecorator registers an extra decorator recognized as an entry point.
func (r *EntryPointRegistry) AddDecorator(decorator, kind string) {
	r.decorators[normalizeDecorator(decorator)] = kind
}

// Classify reports the entry-point kind of a function, if any. Decorators
// are checked first, then naming and file conventions. The exported-root
// shape is not known until resolution and is applied later.
func (r *EntryPointRegistry) Classify(fn *FunctionRecord) (string, bool) {
	for _, decorator := range fn.Decorators {
		name := normalizeDecorator(decorator)
		if kind, ok := r.decorators[name]; ok {
			return kind, true
		}
		// "@router.get" style: the final segment names the verb.
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			if kind, ok := r.decorators[name[idx+1:]]; ok {
				return kind, true
			}
		}
	}

	if isTestFunction(fn) {
		return EntryTest, true
	}

	if fn.Name == "main" {
		return EntryCLICommand, true
	}

	if fn.Exported {
		lower := strings.ToLower(fn.Name)
		if strings.HasPrefix(lower, "handle") || strings.HasSuffix(fn.Name, "Handler") {
			return EntryHTTPHandler, true
		}
		if len(fn.Name) > 2 && strings.HasPrefix(fn.Name, "on") && fn.Name[2] >= 'A' && fn.Name[2] <= 'Z' {
			return EntryEventHandler, true
		}
	}

	return "", false
}

func normalizeDecorator(decorator string) string {
	name := strings.TrimPrefix(decorator, "@")
	name = strings.ReplaceAll(name, "::", ".")
	return strings.ToLower(name)
}

func isTestFunction(fn *FunctionRecord) bool {
	base := path.Base(fn.File)

	if strings.HasSuffix(base, "_test.go") {
		for _, prefix := range []string{"Test", "Benchmark", "Fuzz", "Example"} {
			if strings.HasPrefix(fn.Name, prefix) {
				return true
			}
		}
		return false
	}

	if !isTestFile(fn.File, base) {
		return false
	}
	lower := strings.ToLower(fn.Name)
	return strings.HasPrefix(lower, "test")
}

func isTestFile(file, base string) bool {
	return strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(base, "_test.py") ||
		strings.HasSuffix(base, "_test.rb") ||
		strings.HasSuffix(base, "_spec.rb") ||
		strings.Contains(file, "/__tests__/") ||
		strings.Contains(file, "/tests/")
}
