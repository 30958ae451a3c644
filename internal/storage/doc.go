// Package storage provides SQLite-based persistence for the project-wide
// symbol index.
//
// The storage layer manages:
//   - Project metadata
//   - File information, package, directory, and content hashes
//   - Package-level symbols, methods, and fields
//   - Imports
//   - Full-text search over symbols
//
// # Database Schema
//
// Tables:
//   - projects: Project metadata (root path, module name)
//   - files: Absolute slash-separated paths, directory, SHA-256 hashes
//   - symbols: Extracted symbols (functions, types, etc.)
//   - symbols_fts: FTS5 full-text search index over symbols
//   - imports: Import paths and aliases per file
//
// Positions are stored zero-based with UTF-16 columns, the same convention
// the analysis engine uses everywhere else.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(":memory:")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	file := &storage.File{ProjectID: projectID, FilePath: "/src/p/a.go", Dir: "/src/p", PackageName: "p"}
//	err = db.UpsertFile(ctx, file)
//
// # Transactions
//
// Replacing a file's symbols is done in one transaction:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.DeleteSymbolsByFile(ctx, file.ID)
//	_ = tx.UpsertSymbol(ctx, sym)
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_vec tag switches to github.com/mattn/go-sqlite3 (cgo).
package storage
