package graph

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/callscope/callscope/internal/extract"
)

// DefaultWatchDebounce batches bursts of file events into one rebuild.
const DefaultWatchDebounce = 500 * time.Millisecond

// BuildWatcher watches the project tree and rebuilds the graph when source
// files change. Events are debounced so an editor save storm triggers a
// single rebuild.
type BuildWatcher struct {
	builder      Builder
	discovery    *extract.Discovery
	rootDir      string
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      atomic.Bool
	stopOnce     sync.Once
}

// NewBuildWatcher creates a watcher over rootDir. The discovery decides
// which changed paths are worth a rebuild, using the same patterns the
// build itself uses. A non-positive debounce falls back to the default.
func NewBuildWatcher(rootDir string, builder Builder, discovery *extract.Discovery, debounce time.Duration) (*BuildWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	bw := &BuildWatcher{
		builder:      builder,
		discovery:    discovery,
		rootDir:      rootDir,
		watcher:      watcher,
		debounceTime: debounce,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	if err := bw.addDirectoriesRecursively(rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	return bw, nil
}

// Start begins watching for file changes. Subsequent calls are no-ops.
func (bw *BuildWatcher) Start(ctx context.Context) {
	if !bw.started.CompareAndSwap(false, true) {
		return
	}
	go bw.watch(ctx)
}

// Stop stops the watcher and waits for the event loop to exit. Safe to
// call whether or not Start ran.
func (bw *BuildWatcher) Stop() {
	bw.stopOnce.Do(func() {
		close(bw.stopCh)
		if bw.started.Load() {
			<-bw.doneCh
		}
		bw.watcher.Close()
	})
}

// watch is the event loop with debouncing.
func (bw *BuildWatcher) watch(ctx context.Context) {
	defer close(bw.doneCh)

	var debounceTimer *time.Timer
	rebuildCh := make(chan struct{}, 1)
	changed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-bw.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if !bw.shouldProcessEvent(event) {
				continue
			}

			relPath, _ := filepath.Rel(bw.rootDir, event.Name)
			changed[filepath.ToSlash(relPath)] = true

			// New directories join the watch so files created inside
			// them are seen too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := bw.addDirectoriesRecursively(event.Name); err != nil {
						log.Printf("[watcher] failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(bw.debounceTime, func() {
				select {
				case rebuildCh <- struct{}{}:
				default:
				}
			})

		case <-rebuildCh:
			bw.triggerRebuild(ctx, changed)
			changed = make(map[string]bool)

		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		}
	}
}

// triggerRebuild runs one full build. The extraction cache inside the
// builder keeps unchanged files cheap, so a full pipeline run is fine here.
func (bw *BuildWatcher) triggerRebuild(ctx context.Context, changed map[string]bool) {
	if len(changed) == 0 {
		return
	}

	log.Printf("[watcher] rebuilding after changes in %d file(s)", len(changed))
	start := time.Now()

	g, err := bw.builder.Build(ctx)
	if err != nil {
		log.Printf("[watcher] rebuild failed: %v (keeping previous graph)", err)
		return
	}

	log.Printf("[watcher] rebuild complete in %v (%d functions, %d/%d calls resolved)",
		time.Since(start).Round(time.Millisecond),
		g.Stats.TotalFunctions, g.Stats.ResolvedCalls, g.Stats.TotalCalls)
}

// shouldProcessEvent keeps only events on files a build would extract.
func (bw *BuildWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	relPath, err := filepath.Rel(bw.rootDir, event.Name)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	// Directory creation passes through so it can join the watch list.
	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			return bw.shouldWatchDirectory(relPath)
		}
	}

	return bw.discovery.Selects(relPath)
}

// shouldWatchDirectory skips ignored trees like node_modules.
func (bw *BuildWatcher) shouldWatchDirectory(relPath string) bool {
	return relPath == "." || !bw.ignoredDir(relPath)
}

// addDirectoriesRecursively adds root and every non-ignored subdirectory
// to the fsnotify watch list.
func (bw *BuildWatcher) addDirectoriesRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !info.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(bw.rootDir, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if relPath != "." && bw.ignoredDir(relPath) {
			return filepath.SkipDir
		}
		if err := bw.watcher.Add(path); err != nil {
			log.Printf("[watcher] cannot watch %s: %v", path, err)
		}
		return nil
	})
}

// ignoredDir reports whether a directory subtree is excluded from builds.
func (bw *BuildWatcher) ignoredDir(relPath string) bool {
	base := filepath.Base(relPath)
	if base == ".git" || base == ".callscope" || base == "node_modules" {
		return true
	}
	// A directory whose contents can never be selected is not watched;
	// test with a representative supported file name.
	return !bw.discovery.Selects(relPath+"/f.go") &&
		!bw.discovery.Selects(relPath+"/f.ts") &&
		!bw.discovery.Selects(relPath+"/f.py")
}
