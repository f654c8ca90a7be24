// Package watcher follows the transcript roots with fsnotify and reports
// file changes to the registry. fsnotify does not recurse, so every
// directory under a root is watched individually and directories created
// later are added from their create events. Rapid writes to one transcript
// coalesce behind a per-file trailing debounce; the registry's mtime cache
// absorbs anything delivered twice.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/transcript"
	"github.com/grovetools/roster/util/pathutil"
)

const defaultDebounce = 100 * time.Millisecond

// FileSink receives transcript paths whose content may have changed.
// Satisfied by *registry.Registry.
type FileSink interface {
	HandleFileChanged(ctx context.Context, path string)
}

// Watcher delivers debounced transcript change notifications from the
// configured roots. A root that does not exist yet is picked up by a later
// Scan, which the daemon's sweep loop calls periodically.
type Watcher struct {
	sink     FileSink
	roots    []string
	debounce time.Duration
	clk      clock.Clock
	log      *logrus.Entry

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]clock.Timer
	runCtx  context.Context
}

// New creates a watcher over the given transcript roots. Roots are expanded
// (~, $VARS) up front.
func New(sink FileSink, roots []string, debounce time.Duration, clk clock.Clock) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if clk == nil {
		clk = clock.System()
	}

	log := logging.NewLogger("watcher")

	expanded := make([]string, 0, len(roots))
	for _, root := range roots {
		p, err := pathutil.Expand(root)
		if err != nil {
			log.WithError(err).WithField("root", root).Warn("Failed to expand watch root")
			continue
		}
		expanded = append(expanded, p)
	}

	return &Watcher{
		sink:     sink,
		roots:    expanded,
		debounce: debounce,
		clk:      clk,
		log:      log,
		pending:  make(map[string]clock.Timer),
	}
}

// Name returns the feeder's name for logging.
func (w *Watcher) Name() string { return "watcher" }

// Run watches until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	w.mu.Lock()
	w.fsw = fsw
	w.runCtx = ctx
	w.mu.Unlock()

	defer w.stopPending()

	// Pre-existing transcripts are fed through immediately; the walk also
	// plants the directory watches.
	w.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("File watcher error")
		}
	}
}

// Scan walks the roots, watching any directory not yet watched and feeding
// every transcript file to the sink. The registry skips files whose mtime
// has not advanced, so a full rescan is cheap. Called once at startup and
// again from the sweep loop to cover watcher gaps and late-created roots.
func (w *Watcher) Scan(ctx context.Context) {
	for _, root := range w.roots {
		if _, err := os.Stat(root); err != nil {
			w.log.WithField("root", root).Debug("Watch root not present yet")
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				w.watchDir(path)
				return nil
			}
			if transcript.IsTranscriptName(d.Name()) {
				w.sink.HandleFileChanged(ctx, path)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			w.log.WithError(err).WithField("root", root).Warn("Transcript scan failed")
		}
	}
}

// handleEvent routes one fsnotify event: new directories get watched (and
// drained, since files can land before the watch does), transcript changes
// get debounced.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchTree(event.Name)
			return
		}
	}

	if !transcript.IsTranscriptName(filepath.Base(event.Name)) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.scheduleFlush(event.Name)
}

// watchTree watches dir and everything below it, and debounces any
// transcripts already inside.
func (w *Watcher) watchTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			w.watchDir(path)
			return nil
		}
		if transcript.IsTranscriptName(d.Name()) {
			w.scheduleFlush(path)
		}
		return nil
	})
}

func (w *Watcher) watchDir(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	// Adding an already-watched directory is a no-op for fsnotify.
	if err := fsw.Add(dir); err != nil {
		w.log.WithError(err).WithField("dir", dir).Debug("Failed to watch directory")
		return
	}
	w.log.WithField("dir", dir).Debug("Watching directory")
}

// scheduleFlush arms (or re-arms) the per-file debounce timer. Every write
// pushes the delivery out to a full quiet period from now.
func (w *Watcher) scheduleFlush(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runCtx == nil || w.runCtx.Err() != nil {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = w.clk.AfterFunc(w.debounce, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	ctx := w.runCtx
	w.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	w.sink.HandleFileChanged(ctx, path)
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
