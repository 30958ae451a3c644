// Package index implements the project-wide symbol index on top of the
// SQLite storage layer. Each analyzed or indexed file contributes one
// fragment; fragments are replaced wholesale and skipped when the content
// hash is unchanged.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/stdlib"
	"github.com/dshills/gocontext-analysis/internal/storage"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

var log = commonlog.GetLogger("gocontext.index")

// DefaultSearchLimit caps SearchSymbols when no limit is given
const DefaultSearchLimit = 20

// Index is a ProjectIndex bound to one project row in storage
type Index struct {
	store   storage.Storage
	project *storage.Project
	stdlib  *stdlib.Index
}

var _ analysis.ProjectIndex = (*Index)(nil)

// SymbolHit is a search result
type SymbolHit struct {
	Symbol   types.Symbol
	FilePath string
	Rank     float64
}

// Open binds an index to the project rooted at rootPath, creating the
// project row on first use. A nil std falls back to the embedded stdlib index.
func Open(ctx context.Context, store storage.Storage, rootPath string, std *stdlib.Index) (*Index, error) {
	if std == nil {
		var err error
		if std, err = stdlib.Default(); err != nil {
			return nil, fmt.Errorf("failed to load stdlib index: %w", err)
		}
	}

	project, err := store.GetProject(ctx, rootPath)
	if errors.Is(err, storage.ErrNotFound) {
		project = &storage.Project{
			RootPath:     rootPath,
			IndexVersion: storage.CurrentSchemaVersion,
		}
		if err := store.CreateProject(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	return &Index{store: store, project: project, stdlib: std}, nil
}

// ProjectID returns the storage id of the bound project
func (ix *Index) ProjectID() int64 {
	return ix.project.ID
}

// RootPath returns the project root
func (ix *Index) RootPath() string {
	return ix.project.RootPath
}

// Stdlib returns the standard-library index
func (ix *Index) Stdlib() *stdlib.Index {
	return ix.stdlib
}

// UpdateFile replaces the fragment stored for fragment.FilePath. A fragment
// whose content hash matches the stored one is skipped.
func (ix *Index) UpdateFile(ctx context.Context, fragment *analysis.FileIndex) error {
	if fragment == nil {
		return nil
	}

	existing, err := ix.store.GetFile(ctx, ix.project.ID, fragment.FilePath)
	if err == nil && existing.ContentHash == fragment.ContentHash && existing.PackageName == fragment.PackageName {
		return nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load file %s: %w", fragment.FilePath, err)
	}

	tx, err := ix.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	file := &storage.File{
		ProjectID:   ix.project.ID,
		FilePath:    fragment.FilePath,
		Dir:         fragment.Dir,
		PackageName: fragment.PackageName,
		ContentHash: fragment.ContentHash,
		ModTime:     time.Now(),
	}
	if err = tx.UpsertFile(ctx, file); err != nil {
		return err
	}
	if err = tx.DeleteSymbolsByFile(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to clear symbols: %w", err)
	}
	if err = tx.DeleteImportsByFile(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to clear imports: %w", err)
	}

	for i := range fragment.Symbols {
		if err = tx.UpsertSymbol(ctx, storage.FromTypesSymbol(fragment.Symbols[i], file.ID)); err != nil {
			return err
		}
	}
	for _, imp := range fragment.Imports {
		if err = tx.UpsertImport(ctx, &storage.Import{FileID: file.ID, ImportPath: imp.Path, Alias: imp.Alias}); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fragment: %w", err)
	}
	log.Debugf("indexed %s: %d symbols, %d imports", fragment.FilePath, len(fragment.Symbols), len(fragment.Imports))
	return nil
}

// LookupSymbol reports whether another file of package pkg in dir declares
// name at package level
func (ix *Index) LookupSymbol(ctx context.Context, dir, pkg, name, excludePath string) (bool, error) {
	return ix.store.HasPackageSymbol(ctx, ix.project.ID, dir, pkg, name, excludePath)
}

// RemoveFile drops a file's fragment. Removing an unknown file is a no-op.
func (ix *Index) RemoveFile(ctx context.Context, filePath string) error {
	file, err := ix.store.GetFile(ctx, ix.project.ID, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load file %s: %w", filePath, err)
	}
	if err := ix.store.DeleteFile(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// FileHash returns the content hash stored for filePath
func (ix *Index) FileHash(ctx context.Context, filePath string) ([32]byte, bool, error) {
	file, err := ix.store.GetFile(ctx, ix.project.ID, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, err
	}
	return file.ContentHash, true, nil
}

// Files lists every indexed file path
func (ix *Index) Files(ctx context.Context) ([]string, error) {
	files, err := ix.store.ListFiles(ctx, ix.project.ID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}
	return paths, nil
}

// SearchSymbols runs a full-text search over symbol names, signatures and
// doc comments
func (ix *Index) SearchSymbols(ctx context.Context, query string, limit int) ([]SymbolHit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	results, err := ix.store.SearchSymbols(ctx, ix.project.ID, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]SymbolHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SymbolHit{
			Symbol:   r.Symbol.ToTypesSymbol(),
			FilePath: r.FilePath,
			Rank:     r.Rank,
		})
	}
	return hits, nil
}

// MarkIndexed records a completed workspace pass
func (ix *Index) MarkIndexed(ctx context.Context, moduleName, goVersion string, totalFiles int) error {
	ix.project.ModuleName = moduleName
	ix.project.GoVersion = goVersion
	ix.project.TotalFiles = totalFiles
	ix.project.LastIndexedAt = time.Now()
	return ix.store.UpdateProject(ctx, ix.project)
}

// Status returns the project's index statistics
func (ix *Index) Status(ctx context.Context) (*storage.ProjectStatus, error) {
	return ix.store.GetStatus(ctx, ix.project.ID)
}
