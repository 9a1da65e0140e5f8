package graph

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"golang.org/x/sync/errgroup"

	"github.com/callscope/callscope/internal/extract"
	"github.com/callscope/callscope/internal/extract/extraction"
)

// Build defaults.
const (
	DefaultMaxFileSize   = 10 << 20 // 10 MB
	DefaultParseTimeout  = 5 * time.Second
	DefaultCacheCapacity = 10_000
)

// ProgressReporter reports progress during a build.
type ProgressReporter interface {
	OnBuildStart(totalFiles int)
	OnFileProcessed(processed, totalFiles int, file string)
	OnBuildComplete(stats Stats, duration time.Duration)
}

// Builder runs the full pipeline: discover source files, extract them on
// a bounded worker pool, assemble the graph, resolve calls, and persist
// the result.
type Builder interface {
	Build(ctx context.Context) (*CallGraph, error)
}

// builder implements Builder.
type builder struct {
	rootDir string
	storage Storage

	discovery *extract.Discovery
	extractor *extract.Extractor
	registry  *EntryPointRegistry
	progress  ProgressReporter

	workers       int
	maxFileSize   int64
	parseTimeout  time.Duration
	cacheCapacity int

	includePatterns []string
	ignorePatterns  []string

	// Extraction cache across rebuilds, keyed by path, size, and mtime so
	// watch-mode builds re-parse only changed files.
	cache    otter.Cache[string, *extraction.FileExtraction]
	hasCache bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*builder)

// WithProgress configures progress reporting.
func WithProgress(progress ProgressReporter) BuilderOption {
	return func(b *builder) {
		b.progress = progress
	}
}

// WithWorkers bounds the extraction worker pool. Non-positive means one
// worker per CPU.
func WithWorkers(workers int) BuilderOption {
	return func(b *builder) {
		b.workers = workers
	}
}

// WithMaxFileSize skips files larger than the limit in bytes.
func WithMaxFileSize(limit int64) BuilderOption {
	return func(b *builder) {
		b.maxFileSize = limit
	}
}

// WithParseTimeout bounds each structural parse.
func WithParseTimeout(timeout time.Duration) BuilderOption {
	return func(b *builder) {
		b.parseTimeout = timeout
	}
}

// WithPatterns sets the discovery include and ignore globs. Empty ignore
// patterns fall back to the standard exclusions.
func WithPatterns(include, ignore []string) BuilderOption {
	return func(b *builder) {
		b.includePatterns = include
		b.ignorePatterns = ignore
	}
}

// WithEntryPointRegistry replaces the default entry point classification.
func WithEntryPointRegistry(registry *EntryPointRegistry) BuilderOption {
	return func(b *builder) {
		b.registry = registry
	}
}

// WithCacheCapacity sizes the extraction cache. Zero or negative disables
// caching.
func WithCacheCapacity(capacity int) BuilderOption {
	return func(b *builder) {
		b.cacheCapacity = capacity
	}
}

// NewBuilder creates a graph builder for the given project root.
func NewBuilder(rootDir string, storage Storage, opts ...BuilderOption) (Builder, error) {
	b := &builder{
		rootDir:       rootDir,
		storage:       storage,
		workers:       runtime.NumCPU(),
		maxFileSize:   DefaultMaxFileSize,
		parseTimeout:  DefaultParseTimeout,
		cacheCapacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers <= 0 {
		b.workers = runtime.NumCPU()
	}
	if b.registry == nil {
		b.registry = DefaultEntryPointRegistry()
	}
	if len(b.ignorePatterns) == 0 {
		b.ignorePatterns = extract.DefaultIgnorePatterns
	}

	discovery, err := extract.NewDiscovery(rootDir, b.includePatterns, b.ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid discovery pattern: %w", err)
	}
	b.discovery = discovery
	b.extractor = extract.NewExtractor(b.parseTimeout)

	if b.cacheCapacity > 0 {
		cache, err := otter.MustBuilder[string, *extraction.FileExtraction](b.cacheCapacity).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create extraction cache: %w", err)
		}
		b.cache = cache
		b.hasCache = true
	}

	return b, nil
}

// Build runs the pipeline once and persists the resulting graph.
func (b *builder) Build(ctx context.Context) (*CallGraph, error) {
	start := time.Now()
	buildID := uuid.New().String()

	files, err := b.discovery.Discover()
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	log.Printf("[build] %s: discovered %d files in %s", buildID, len(files), b.rootDir)
	if b.progress != nil {
		b.progress.OnBuildStart(len(files))
	}

	extractions, err := b.extractAll(ctx, files)
	if err != nil {
		return nil, err
	}

	// Assembly starts only after every file result is in.
	graph, index := NewAssembler(b.registry).Assemble(b.rootDir, extractions)
	graph.BuildID = buildID

	if err := NewResolver(index, b.workers).Resolve(ctx, graph); err != nil {
		return nil, fmt.Errorf("resolution failed: %w", err)
	}
	finalizeGraph(graph)

	graph.GeneratedAt = buildTimestamp()
	graph.Stats.DurationMS = time.Since(start).Milliseconds()

	if err := b.storage.Save(graph); err != nil {
		return nil, fmt.Errorf("failed to persist graph: %w", err)
	}

	duration := time.Since(start)
	log.Printf("[build] %s: %d functions, %d/%d calls resolved, %d entry points in %s",
		buildID, graph.Stats.TotalFunctions, graph.Stats.ResolvedCalls,
		graph.Stats.TotalCalls, graph.Stats.EntryPoints, duration.Round(time.Millisecond))
	if b.progress != nil {
		b.progress.OnBuildComplete(graph.Stats, duration)
	}

	return graph, nil
}

// extractAll runs per-file extraction on a bounded worker pool. A failing
// file is logged and skipped; it never aborts the batch.
func (b *builder) extractAll(ctx context.Context, files []string) ([]*extraction.FileExtraction, error) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(b.workers)

	var mu sync.Mutex
	results := make([]*extraction.FileExtraction, 0, len(files))
	processed := 0

	for _, relPath := range files {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			out, err := b.extractOne(ctx, relPath)
			if err != nil {
				log.Printf("[build] skipping %s: %v", relPath, err)
			}

			// Progress stays inside the lock so reporters see serialized,
			// monotonic counts.
			mu.Lock()
			if out != nil {
				results = append(results, out)
			}
			processed++
			if b.progress != nil {
				b.progress.OnFileProcessed(processed, len(files), relPath)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Worker completion order is nondeterministic; assembly order is not.
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// extractOne reads and extracts a single file, consulting the cache first.
func (b *builder) extractOne(ctx context.Context, relPath string) (*extraction.FileExtraction, error) {
	absPath := filepath.Join(b.rootDir, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if info.Size() > b.maxFileSize {
		return nil, fmt.Errorf("file exceeds size limit (%d bytes)", info.Size())
	}

	cacheKey := relPath + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	if b.hasCache {
		if cached, ok := b.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	out := b.extractor.ExtractFile(ctx, relPath, source)
	if b.hasCache {
		b.cache.Set(cacheKey, out)
	}
	return out, nil
}
