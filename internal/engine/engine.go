// Package engine wires the document store, artifact cache, analysis
// scheduler and project index into one service, and adds the editor-facing
// lifecycle: open, change, save, close.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/artifact"
	"github.com/dshills/gocontext-analysis/internal/config"
	"github.com/dshills/gocontext-analysis/internal/document"
	"github.com/dshills/gocontext-analysis/internal/index"
	"github.com/dshills/gocontext-analysis/internal/indexer"
	"github.com/dshills/gocontext-analysis/internal/parser"
	"github.com/dshills/gocontext-analysis/internal/scheduler"
	"github.com/dshills/gocontext-analysis/internal/semantic"
	"github.com/dshills/gocontext-analysis/internal/stdlib"
	"github.com/dshills/gocontext-analysis/internal/storage"
	"github.com/dshills/gocontext-analysis/internal/symbols"
	"github.com/dshills/gocontext-analysis/internal/watcher"
)

var log = commonlog.GetLogger("gocontext.engine")

// ErrClosed is returned by operations on an engine after Shutdown
var ErrClosed = errors.New("engine closed")

// Engine is the analysis service for one workspace
type Engine struct {
	cfg *config.Config

	storage storage.Storage
	index   *index.Index
	store   *document.Store
	cache   *artifact.Cache
	sched   *scheduler.Scheduler
	indexer *indexer.Indexer
	watcher *watcher.Watcher

	mu     sync.Mutex
	closed bool
}

// Stats is a point-in-time view of the engine
type Stats struct {
	Documents document.Stats         `json:"documents"`
	Cache     artifact.Stats         `json:"cache"`
	Pending   int                    `json:"pending"`
	Indexing  bool                   `json:"indexing"`
	Index     *storage.ProjectStatus `json:"index,omitempty"`
}

// New builds an engine from cfg and starts its analysis goroutine. The
// watcher, if enabled, is started as well; workspace indexing is not.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	std, err := loadStdlib(cfg.StdlibPath)
	if err != nil {
		return nil, err
	}

	root, err := workspaceRoot(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	dbPath, err := prepareDBPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	e, err := build(ctx, cfg, store, root, std)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

func build(ctx context.Context, cfg *config.Config, store storage.Storage, root string, std *stdlib.Index) (*Engine, error) {
	ix, err := index.Open(ctx, store, root, std)
	if err != nil {
		return nil, fmt.Errorf("failed to open project index: %w", err)
	}

	cache, err := artifact.New(artifact.Options{
		ParseEntries:       cfg.Cache.ParseEntries,
		SymbolTableEntries: cfg.Cache.SymbolTableEntries,
		AnalysisEntries:    cfg.Cache.AnalysisEntries,
		MaxAge:             cfg.Cache.MaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact cache: %w", err)
	}

	p := parser.New()
	b := symbols.New()
	docs := document.NewStore()

	sched, err := scheduler.New(scheduler.Options{
		Store:           docs,
		Cache:           cache,
		Parser:          p,
		Builder:         b,
		Analyzer:        semantic.Factory,
		Index:           ix,
		Debounce:        cfg.Scheduler.Debounce,
		FastDebounce:    cfg.Scheduler.FastDebounce,
		AnalysisTimeout: cfg.Scheduler.AnalysisTimeout,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		storage: store,
		index:   ix,
		store:   docs,
		cache:   cache,
		sched:   sched,
		indexer: indexer.New(p, b, ix, sched),
	}

	if err := sched.Start(); err != nil {
		return nil, err
	}

	if cfg.Watcher.Enabled && cfg.Workspace != "" {
		w, err := watcher.New(root, e.handleFileChanges, &watcher.Options{
			Debounce:   cfg.Watcher.Debounce,
			IgnoreDirs: watcher.DefaultOptions().IgnoreDirs,
		})
		if err != nil {
			sched.Stop()
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(context.Background()); err != nil {
			w.Stop()
			sched.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		e.watcher = w
	}

	log.Infof("engine ready: workspace %s, storage %s (%s)", root, storage.DriverName, storage.BuildMode)
	return e, nil
}

func loadStdlib(path string) (*stdlib.Index, error) {
	if path == "" {
		return stdlib.Default()
	}
	return stdlib.LoadFile(path)
}

func workspaceRoot(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	root, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("invalid workspace %q: %w", workspace, err)
	}
	return filepath.ToSlash(root), nil
}

// prepareDBPath expands ~ and creates the database directory
func prepareDBPath(dbPath string) (string, error) {
	if dbPath == "" || dbPath == config.DefaultDBPath {
		return config.DefaultDBPath, nil
	}
	if strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[2:])
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Open registers a document and analyzes it immediately
func (e *Engine) Open(uri, text string, version int32) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.store.Open(uri, text, version)
	e.sched.ScheduleImmediate(uri)
	return nil
}

// Update replaces the whole text of a document and schedules a debounced
// analysis
func (e *Engine) Update(uri, text string, version int32) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.store.Update(uri, text, version); err != nil {
		return err
	}
	e.sched.Schedule(uri, scheduler.PriorityNormal)
	return nil
}

// Change applies an ordered batch of edits and schedules a debounced
// analysis
func (e *Engine) Change(uri string, version int32, changes []document.Change) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.store.ApplyChanges(uri, version, changes); err != nil {
		return err
	}
	e.sched.Schedule(uri, scheduler.PriorityNormal)
	return nil
}

// Save analyzes a document immediately
func (e *Engine) Save(uri string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if _, err := e.store.Lookup(uri); err != nil {
		return err
	}
	e.sched.ScheduleImmediate(uri)
	return nil
}

// Close removes a document and cancels its analysis. The store entry goes
// first so a run already past its last cancellation check fails its
// write-back instead of resurrecting the document.
func (e *Engine) Close(uri string) bool {
	doc := e.store.Close(uri)
	e.sched.Cancel(uri)
	return doc != nil
}

// Document returns a snapshot of an open document, or nil
func (e *Engine) Document(uri string) *document.Document {
	return e.store.Get(uri)
}

// Documents lists the open URIs
func (e *Engine) Documents() []string {
	return e.store.URIs()
}

// Diagnostics returns up-to-date results for uri, analyzing it first if it
// changed since the last run. It returns nil if the document is not open.
func (e *Engine) Diagnostics(ctx context.Context, uri string) (*analysis.Result, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.sched.EnsureAnalyzed(ctx, uri)
}

// Subscribe returns a channel of diagnostics updates
func (e *Engine) Subscribe() *scheduler.Subscription {
	return e.sched.Subscribe()
}

// OnDiagnostics registers a listener for diagnostics updates
func (e *Engine) OnDiagnostics(fn func(scheduler.DiagnosticsUpdate)) func() {
	return e.sched.OnDiagnostics(fn)
}

// Stats reports document, cache, scheduler and index state
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	status, err := e.index.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get index status: %w", err)
	}
	return &Stats{
		Documents: e.store.Stats(),
		Cache:     e.cache.Stats(),
		Pending:   e.sched.PendingCount(),
		Indexing:  e.indexer.Running(),
		Index:     status,
	}, nil
}

// RootPath returns the workspace root as a slash path
func (e *Engine) RootPath() string {
	return e.index.RootPath()
}

// IndexWorkspace indexes every Go file in the workspace. Open documents
// are left to the scheduler, which indexes their editor contents.
func (e *Engine) IndexWorkspace(ctx context.Context, force bool) (*indexer.Statistics, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	open := make(map[string]bool)
	for _, uri := range e.store.URIs() {
		open[document.PathFromURI(uri)] = true
	}

	cfg := indexer.DefaultConfig()
	if e.cfg.Indexer.Workers > 0 {
		cfg.Workers = e.cfg.Indexer.Workers
	}
	cfg.IncludeTests = e.cfg.Indexer.IncludeTests
	cfg.IncludeVendor = e.cfg.Indexer.IncludeVendor
	cfg.ForceReindex = force
	cfg.Skip = func(filePath string) bool { return open[filePath] }

	stats, err := e.indexer.IndexProject(ctx, e.index.RootPath(), cfg)
	if err != nil {
		return nil, err
	}
	e.refreshOpenDocuments()
	return stats, nil
}

// SearchSymbols searches the project index
func (e *Engine) SearchSymbols(ctx context.Context, query string, limit int) ([]index.SymbolHit, error) {
	return e.index.SearchSymbols(ctx, query, limit)
}

// handleFileChanges keeps the project index in step with the disk. Files
// open in the editor are skipped since their buffer is authoritative.
func (e *Engine) handleFileChanges(changes []watcher.Change) {
	if e.checkOpen() != nil {
		return
	}
	ctx := context.Background()

	open := make(map[string]bool)
	for _, uri := range e.store.URIs() {
		open[document.PathFromURI(uri)] = true
	}

	touched := false
	for _, change := range changes {
		if !strings.HasSuffix(change.Path, ".go") || open[change.Path] {
			continue
		}
		var err error
		if change.Op.Gone() {
			err = e.indexer.RemoveFile(ctx, change.Path)
		} else {
			err = e.indexer.IndexFile(ctx, change.Path)
		}
		switch {
		case errors.Is(err, scheduler.ErrStopped):
			return
		case err != nil:
			log.Warningf("failed to update index for %s (%s): %v", change.Path, change.Op, err)
		default:
			touched = true
		}
	}

	if touched {
		e.refreshOpenDocuments()
	}
}

// refreshOpenDocuments re-runs analysis for every open document after the
// project index changed underneath them. The analysis table is keyed by
// content alone, so it has to be dropped too.
func (e *Engine) refreshOpenDocuments() {
	uris := e.store.URIs()
	if len(uris) == 0 {
		return
	}
	e.cache.Analyses().InvalidateAll()
	for _, uri := range uris {
		if err := e.store.Invalidate(uri); err != nil {
			continue
		}
		e.sched.Schedule(uri, scheduler.PriorityFast)
	}
	log.Debugf("rescheduled %d open documents after index change", len(uris))
}

// Shutdown stops the watcher and the scheduler and closes storage. It is
// safe to call more than once.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.watcher != nil {
		e.watcher.Stop()
	}
	e.sched.Stop()
	if err := e.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	log.Infof("engine stopped")
	return nil
}
