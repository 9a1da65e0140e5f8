package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/callscope/callscope/internal/config"
	"github.com/callscope/callscope/internal/extract"
	"github.com/callscope/callscope/internal/graph"
)

var (
	buildQuietFlag   bool
	buildWatchFlag   bool
	buildWorkersFlag int
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the call graph for the project",
	Long: `Build scans the project, extracts every function definition and call
site, resolves calls to their targets, and persists the resulting call
graph under .callscope/.

The builder:
  - Discovers source files (TypeScript, Python, Go, Java, Ruby, Rust, C, PHP)
  - Extracts functions, calls, imports, and data access per file
  - Resolves each call to its target with a confidence score
  - Classifies entry points (HTTP handlers, CLI commands, tests, jobs)
  - Writes .callscope/call-graph.json atomically

Examples:
  # Build the current directory
  callscope build

  # Build without progress output
  callscope build --quiet

  # Rebuild automatically when files change
  callscope build --watch

  # Build another project
  callscope build --root /path/to/project
`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVarP(&buildQuietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	buildCmd.Flags().BoolVarP(&buildWatchFlag, "watch", "w", false, "Watch for file changes and rebuild automatically")
	buildCmd.Flags().IntVar(&buildWorkersFlag, "workers", 0, "Extraction workers (overrides config; 0 means one per CPU)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	// Set up context with cancellation for Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling build...")
		cancel()
	}()

	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	// Load configuration from .callscope/config.yaml
	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	workers := cfg.Build.Workers
	if cmd.Flags().Changed("workers") {
		workers = buildWorkersFlag
	}

	storage, err := graph.NewStorage(config.Dir(rootDir))
	if err != nil {
		return fmt.Errorf("failed to open graph storage: %w", err)
	}

	registry := graph.DefaultEntryPointRegistry()
	for decorator, kind := range cfg.Analysis.EntryPointDecorators {
		registry.AddDecorator(decorator, kind)
	}

	progress := NewCLIProgressReporter(buildQuietFlag)

	builder, err := graph.NewBuilder(rootDir, storage,
		graph.WithWorkers(workers),
		graph.WithMaxFileSize(cfg.Build.MaxFileSize()),
		graph.WithParseTimeout(cfg.Build.ParseTimeout()),
		graph.WithPatterns(cfg.Paths.Include, cfg.Paths.Ignore),
		graph.WithEntryPointRegistry(registry),
		graph.WithCacheCapacity(cfg.Build.CacheCapacity),
		graph.WithProgress(progress),
	)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	cg, err := builder.Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("build cancelled")
		}
		return fmt.Errorf("build failed: %w", err)
	}

	if buildQuietFlag {
		// OnBuildComplete already printed the summary in normal mode.
		fmt.Printf("Build complete: %d functions, %d calls in %dms\n",
			cg.Stats.TotalFunctions, cg.Stats.TotalCalls, cg.Stats.DurationMS)
	}

	if !buildWatchFlag {
		return nil
	}

	// Watch mode: rebuild on changes until interrupted.
	discovery, err := extract.NewDiscovery(rootDir, cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return fmt.Errorf("failed to create discovery: %w", err)
	}

	watcher, err := graph.NewBuildWatcher(rootDir, builder, discovery, cfg.Build.WatchDebounce())
	if err != nil {
		return fmt.Errorf("failed to start watch mode: %w", err)
	}
	defer watcher.Stop()

	if !buildQuietFlag {
		fmt.Println("Watching for changes (Ctrl+C to stop)...")
	}
	watcher.Start(ctx)

	<-ctx.Done()
	if !buildQuietFlag {
		fmt.Println("Watch mode stopped")
	}
	return nil
}
