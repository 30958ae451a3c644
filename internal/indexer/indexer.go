package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/artifact"
	"github.com/dshills/gocontext-analysis/internal/index"
)

var log = commonlog.GetLogger("gocontext.indexer")

// ErrIndexingInProgress is returned when a pass is already running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Submitter runs fn where project index writes are allowed
type Submitter interface {
	Submit(ctx context.Context, fn func(context.Context) error) error
}

// direct runs fn on the calling goroutine
type direct struct{}

func (direct) Submit(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Indexer coordinates the workspace pipeline: discover -> parse -> merge
type Indexer struct {
	parser  analysis.Parser
	builder analysis.SymbolBuilder
	index   *index.Index
	submit  Submitter

	lock IndexLock
}

// Config contains configuration for a workspace pass
type Config struct {
	Workers       int  // Number of concurrent workers (default: runtime.NumCPU())
	IncludeTests  bool // Whether to index test files
	IncludeVendor bool // Whether to index the vendor directory
	ForceReindex  bool // Re-parse files whose hash is unchanged

	// Skip, if set, excludes paths from the pass. The engine uses it for
	// documents that are open in the editor.
	Skip func(filePath string) bool
}

// DefaultConfig returns the configuration used when IndexProject gets nil
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		IncludeTests: true,
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed     int           `json:"files_indexed"`
	FilesSkipped     int           `json:"files_skipped"`
	FilesFailed      int           `json:"files_failed"`
	FilesRemoved     int           `json:"files_removed"`
	SymbolsExtracted int           `json:"symbols_extracted"`
	Duration         time.Duration `json:"duration"`
	ErrorMessages    []string      `json:"error_messages,omitempty"`
}

// New creates an Indexer. A nil submitter writes the index directly.
func New(parser analysis.Parser, builder analysis.SymbolBuilder, ix *index.Index, submit Submitter) *Indexer {
	if submit == nil {
		submit = direct{}
	}
	return &Indexer{
		parser:  parser,
		builder: builder,
		index:   ix,
		submit:  submit,
	}
}

// Running reports whether a workspace pass is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// IndexProject indexes every Go file under rootPath and drops index entries
// for files that no longer exist
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	startTime := time.Now()
	stats := &Statistics{}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}

	files, err := discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	fragments, err := idx.buildFragments(ctx, files, config, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}

	modInfo, _ := parseGoMod(filepath.Join(rootPath, "go.mod"))
	if modInfo == nil {
		modInfo = &goModInfo{}
	}

	err = idx.submit.Submit(ctx, func(ctx context.Context) error {
		for _, fragment := range fragments {
			if err := idx.index.UpdateFile(ctx, fragment); err != nil {
				return fmt.Errorf("failed to merge %s: %w", fragment.FilePath, err)
			}
		}

		indexed, err := idx.index.Files(ctx)
		if err != nil {
			return err
		}
		prefix := strings.TrimSuffix(filepath.ToSlash(rootPath), "/") + "/"
		for _, p := range indexed {
			if !strings.HasPrefix(p, prefix) || seen[p] {
				continue
			}
			if config.Skip != nil && config.Skip(p) {
				continue
			}
			if err := idx.index.RemoveFile(ctx, p); err != nil {
				return err
			}
			stats.FilesRemoved++
		}

		return idx.index.MarkIndexed(ctx, modInfo.Module, modInfo.GoVersion, len(files))
	})
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	log.Infof("indexed %s: %d indexed, %d skipped, %d failed, %d removed in %v",
		rootPath, stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved, stats.Duration)
	return stats, nil
}

// IndexFile re-indexes one file, typically after a change on disk
func (idx *Indexer) IndexFile(ctx context.Context, filePath string) error {
	fragment, err := idx.buildFragment(ctx, filePath, true)
	if err != nil {
		return err
	}
	return idx.submit.Submit(ctx, func(ctx context.Context) error {
		return idx.index.UpdateFile(ctx, fragment)
	})
}

// RemoveFile drops a deleted file from the index
func (idx *Indexer) RemoveFile(ctx context.Context, filePath string) error {
	return idx.submit.Submit(ctx, func(ctx context.Context) error {
		return idx.index.RemoveFile(ctx, filepath.ToSlash(filePath))
	})
}

// discoverFiles finds all Go files in the project, as slash-separated paths
func discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.IncludeVendor && d.Name() == "vendor" {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		slashed := filepath.ToSlash(path)
		if config.Skip != nil && config.Skip(slashed) {
			return nil
		}
		files = append(files, slashed)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// buildFragments parses files concurrently. Per-file failures are recorded
// in stats and do not stop the pass.
func (idx *Indexer) buildFragments(ctx context.Context, files []string, config *Config, stats *Statistics) ([]*analysis.FileIndex, error) {
	semaphore := make(chan struct{}, config.Workers)

	var (
		indexed int32
		skipped int32
		failed  int32
		symbols int32

		mu        sync.Mutex // Protects fragments and stats.ErrorMessages
		fragments []*analysis.FileIndex
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, filePath := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			fragment, err := idx.buildFragment(gctx, filePath, config.ForceReindex)
			switch {
			case errors.Is(err, context.Canceled):
				return err
			case err != nil:
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
				mu.Unlock()
				return nil
			case fragment == nil:
				atomic.AddInt32(&skipped, 1)
				return nil
			}

			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&symbols, int32(len(fragment.Symbols)))
			mu.Lock()
			fragments = append(fragments, fragment)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.SymbolsExtracted = int(symbols)

	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].FilePath < fragments[j].FilePath
	})
	return fragments, nil
}

// buildFragment reads and parses one file. It returns nil without error
// when the stored hash matches and force is false.
func (idx *Indexer) buildFragment(ctx context.Context, filePath string, force bool) (*analysis.FileIndex, error) {
	filePath = filepath.ToSlash(filePath)

	content, err := os.ReadFile(filepath.FromSlash(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	hash := artifact.Hash(text)

	if !force {
		stored, ok, err := idx.index.FileHash(ctx, filePath)
		if err != nil {
			return nil, err
		}
		if ok && stored == hash {
			return nil, nil
		}
	}

	parse, err := idx.parser.Parse(ctx, filePath, text)
	if err != nil {
		return nil, err
	}
	if parse.HasErrors() {
		log.Debugf("%s has %d syntax errors, indexing partial tree", filePath, len(parse.SyntaxErrors))
	}

	table, err := idx.builder.Build(parse.Tree, filePath)
	if err != nil {
		return nil, err
	}
	return analysis.NewFileIndex(table, hash), nil
}

// goModInfo contains parsed go.mod information
type goModInfo struct {
	Module    string
	GoVersion string
}

// parseGoMod extracts basic info from go.mod file
func parseGoMod(goModPath string) (*goModInfo, error) {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, err
	}

	info := &goModInfo{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			info.Module = strings.TrimSpace(strings.TrimPrefix(line, "module"))
		} else if strings.HasPrefix(line, "go ") {
			info.GoVersion = strings.TrimSpace(strings.TrimPrefix(line, "go"))
		}
	}

	return info, nil
}
