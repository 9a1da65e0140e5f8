package mcp

// Implementation Plan:
// 1. Use fsnotify to watch the .callscope directory
// 2. React only to the call graph file, not config or staging files
// 3. Debounce file system events (500ms)
// 4. Trigger searcher reload on debounce timeout
// 5. Handle errors gracefully (keep old snapshot on failure)
// 6. Thread-safe start/stop

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/callscope/callscope/internal/graph"
)

// Reloadable is an interface for components that can be reloaded.
type Reloadable interface {
	Reload(ctx context.Context) error
}

// GraphWatcher watches the analysis directory and reloads the searcher
// whenever a build rewrites the call graph file.
type GraphWatcher struct {
	reloadable   Reloadable
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      atomic.Bool
	stopOnce     sync.Once
}

// NewGraphWatcher creates a watcher over the analysis directory. The
// directory must exist; storage creation guarantees that.
func NewGraphWatcher(reloadable Reloadable, graphDir string) (*GraphWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(graphDir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &GraphWatcher{
		reloadable:   reloadable,
		watcher:      watcher,
		debounceTime: 500 * time.Millisecond,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins watching for graph rewrites. Subsequent calls are no-ops.
func (gw *GraphWatcher) Start(ctx context.Context) {
	if !gw.started.CompareAndSwap(false, true) {
		return
	}
	go gw.watch(ctx)
}

// Stop stops the watcher. Safe to call whether or not Start ran.
func (gw *GraphWatcher) Stop() {
	gw.stopOnce.Do(func() {
		close(gw.stopCh)
		if gw.started.Load() {
			<-gw.doneCh // Wait for goroutine to finish
		}
		gw.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (gw *GraphWatcher) watch(ctx context.Context) {
	defer close(gw.doneCh)

	var debounceTimer *time.Timer
	reloadCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-gw.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-gw.watcher.Events:
			if !ok {
				return
			}

			if !gw.isGraphRewrite(event) {
				continue
			}

			// Reset debounce timer - properly stop and drain
			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(gw.debounceTime, func() {
				// Send reload signal (non-blocking)
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			gw.triggerReload(ctx)

		case err, ok := <-gw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[mcp] watcher error: %v", err)
		}
	}
}

// isGraphRewrite reports whether an event is a write of the persisted
// graph. Builds write a temp file and rename it into place, so both the
// write and the rename surface as Create/Write/Rename on the final name.
func (gw *GraphWatcher) isGraphRewrite(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Base(event.Name) == graph.GraphFileName
}

// triggerReload swaps in a fresh snapshot. On failure the previous
// snapshot keeps serving queries.
func (gw *GraphWatcher) triggerReload(ctx context.Context) {
	start := time.Now()

	if err := gw.reloadable.Reload(ctx); err != nil {
		log.Printf("[mcp] reload failed: %v (keeping old snapshot)", err)
		return
	}

	log.Printf("[mcp] reloaded call graph in %v", time.Since(start))
}
