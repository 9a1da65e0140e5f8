package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GraphFileName is the name of the persisted call graph file inside the
// analysis directory.
const GraphFileName = "call-graph.json"

// Storage handles reading and writing the call graph to disk.
type Storage interface {
	// Load loads the persisted graph. Returns ErrGraphNotBuilt when no graph
	// exists or it cannot be decoded, and ErrSchemaVersion on a schema
	// mismatch.
	Load() (*CallGraph, error)

	// Save saves the graph to disk using atomic write pattern.
	Save(g *CallGraph) error

	// Exists checks if the graph file exists.
	Exists() bool
}

// storage implements Storage with atomic write support.
type storage struct {
	graphDir string // Directory containing the graph file (.callscope/)
}

// NewStorage creates a new graph storage instance rooted at the analysis
// directory.
func NewStorage(graphDir string) (Storage, error) {
	// Ensure graph directory exists
	if err := os.MkdirAll(graphDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}

	// Ensure temp directory exists for atomic writes
	tempDir := filepath.Join(graphDir, ".tmp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &storage{graphDir: graphDir}, nil
}

// Load loads the call graph from disk.
func (s *storage) Load() (*CallGraph, error) {
	filePath := s.graphFilePath()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrGraphNotBuilt
		}
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var g CallGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("corrupt graph file (%v): %w", err, ErrGraphNotBuilt)
	}
	if g.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: found %q, want %q", ErrSchemaVersion, g.Schema, SchemaVersion)
	}
	if g.Functions == nil {
		g.Functions = make(map[string]*FunctionRecord)
	}

	return &g, nil
}

// Save saves the call graph to disk using atomic write pattern.
func (s *storage) Save(g *CallGraph) error {
	g.Schema = SchemaVersion
	if g.GeneratedAt.IsZero() {
		g.GeneratedAt = buildTimestamp()
	}

	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	// Write to temp file first
	tempPath := filepath.Join(s.graphDir, ".tmp", GraphFileName)
	if err := os.WriteFile(tempPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp graph file: %w", err)
	}

	// Atomic rename (POSIX guarantees atomicity)
	finalPath := s.graphFilePath()
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename temp graph file: %w", err)
	}

	return nil
}

// Exists checks if the graph file exists.
func (s *storage) Exists() bool {
	_, err := os.Stat(s.graphFilePath())
	return err == nil
}

// graphFilePath returns the full path to the graph file.
func (s *storage) graphFilePath() string {
	return filepath.Join(s.graphDir, GraphFileName)
}
