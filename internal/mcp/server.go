package mcp

// Implementation Plan:
// 1. Server struct with searcher and graph watcher
// 2. NewServer - creates server, registers tools, starts graph watcher
// 3. Serve - starts MCP server on stdio with graceful shutdown
// 4. Graceful shutdown on SIGTERM/SIGINT
// 5. Clean error handling and logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/callscope/callscope/internal/graph"
)

// Server manages the MCP server lifecycle. It serves read-only call graph
// queries over stdio and reloads the graph whenever a build rewrites it.
type Server struct {
	searcher graph.Searcher
	watcher  *GraphWatcher
	mcp      *server.MCPServer
}

// NewServer creates an MCP server over an open searcher. graphDir is the
// analysis directory to watch for graph rewrites. The server takes
// ownership of the searcher and closes it with Close.
func NewServer(searcher graph.Searcher, graphDir string) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	mcpServer := server.NewMCPServer(
		"callscope-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	AddCallersTool(mcpServer, searcher)
	AddReachabilityTool(mcpServer, searcher)
	AddPathsToDataTool(mcpServer, searcher)
	AddImpactTool(mcpServer, searcher)
	AddStatsTool(mcpServer, searcher)

	watcher, err := NewGraphWatcher(searcher, graphDir)
	if err != nil {
		searcher.Close()
		return nil, fmt.Errorf("failed to create graph watcher: %w", err)
	}

	return &Server{
		searcher: searcher,
		watcher:  watcher,
		mcp:      mcpServer,
	}, nil
}

// Serve starts the MCP server and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	// Start graph watcher
	s.watcher.Start(ctx)
	defer s.watcher.Stop()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Start MCP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[mcp] serving on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigCh:
		log.Printf("[mcp] received shutdown signal, stopping gracefully...")
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases all resources.
func (s *Server) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.searcher != nil {
		return s.searcher.Close()
	}
	return nil
}
