// Package watcher reports batches of Go source changes under a workspace
// root. Events are debounced and deduplicated per path, so an editor's
// write-rename-chmod dance arrives as a single change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gocontext.watcher")

// Op classifies a change
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Gone reports whether the path no longer exists after the change
func (op Op) Gone() bool {
	return op == OpRemove || op == OpRename
}

// Change is one file event. Path is slash-separated.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives a debounced batch, at most one change per path
type Handler func(changes []Change)

// Options configures a Watcher
type Options struct {
	Debounce time.Duration

	// IgnoreDirs are directory base names that are never watched
	IgnoreDirs []string
}

// DefaultOptions returns the default watcher options
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		IgnoreDirs: []string{".git", "vendor", "node_modules", "testdata", ".idea"},
	}
}

// Watcher watches a directory tree for Go source changes
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	handler Handler
	opts    Options

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for root. Call Start to begin delivering changes.
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:    root,
		fsw:     fsw,
		handler: handler,
		opts:    *opts,
		changes: make(chan Change, 256),
		done:    make(chan struct{}),
	}, nil
}

// Start adds every directory under root and starts the event loops
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop closes the underlying watcher and waits for the loops to exit.
// Pending changes are flushed to the handler first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether Start has been called and Stop has not
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ignored := range w.opts.IgnoreDirs {
		if name == ignored {
			return true
		}
	}
	return false
}

// relevant keeps Go sources and go.mod
func relevant(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".go") || base == "go.mod"
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			// New directories join the watch set
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignoredDir(info.Name()) {
					if err := w.addRecursive(event.Name); err != nil {
						log.Warningf("failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}

			if !relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			change := Change{
				Path: filepath.ToSlash(event.Name),
				Op:   convertOp(event.Op),
				Time: time.Now(),
			}
			select {
			case w.changes <- change:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warningf("watch error: %v", err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			if deduped := dedupe(batch); len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the last change per path, in first-seen order
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	result := make([]Change, 0, len(changes))
	for _, change := range changes {
		if idx, ok := seen[change.Path]; ok {
			result[idx] = change
			continue
		}
		seen[change.Path] = len(result)
		result = append(result, change)
	}
	return result
}
