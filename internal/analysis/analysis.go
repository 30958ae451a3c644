// Package analysis defines the contracts between the analysis engine and
// its pluggable collaborators: the parser, the symbol builder, the semantic
// analyzer, and the project-wide index. It also defines the artifacts those
// collaborators produce.
package analysis

import (
	"context"
	"time"

	"github.com/dshills/gocontext-analysis/internal/stdlib"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// Tree is an opaque parse tree produced by a Parser. Only the matching
// SymbolBuilder and Analyzer know its concrete type.
type Tree interface{}

// ParseResult is the output of parsing one document's text
type ParseResult struct {
	Tree         Tree
	SyntaxErrors []types.Diagnostic
}

// HasErrors returns true if any syntax errors were reported
func (pr *ParseResult) HasErrors() bool {
	return len(pr.SyntaxErrors) > 0
}

// ErrorRanges returns the ranges of all syntax errors
func (pr *ParseResult) ErrorRanges() []types.Range {
	ranges := make([]types.Range, 0, len(pr.SyntaxErrors))
	for i := range pr.SyntaxErrors {
		ranges = append(ranges, pr.SyntaxErrors[i].Range)
	}
	return ranges
}

// Parser turns text into a tree. It must be a pure function of its input.
type Parser interface {
	Parse(ctx context.Context, filePath, text string) (*ParseResult, error)
}

// SymbolBuilder builds a symbol table from a parse tree
type SymbolBuilder interface {
	Build(tree Tree, filePath string) (*SymbolTable, error)
}

// Analyzer runs semantic analysis, appending to the context's diagnostics
type Analyzer interface {
	Analyze(ctx context.Context) error
}

// AnalyzerFactory constructs an Analyzer bound to one analysis context
type AnalyzerFactory func(actx *Context) Analyzer

// ProjectIndex is the shared, cross-file symbol index. The engine writes it
// only from the analysis goroutine; lookups may happen anywhere.
type ProjectIndex interface {
	// UpdateFile merges one file's index fragment, replacing any prior
	// fragment for the same path.
	UpdateFile(ctx context.Context, fragment *FileIndex) error

	// LookupSymbol reports whether a package-level symbol named name is
	// declared in package pkg in directory dir by any file other than
	// excludePath.
	LookupSymbol(ctx context.Context, dir, pkg, name, excludePath string) (bool, error)

	// Stdlib returns the standard-library index
	Stdlib() *stdlib.Index
}

// Result is what callers of the scheduler receive for an analyzed document
type Result struct {
	URI         string
	Version     int32
	Diagnostics []types.Diagnostic
	Bundle      *Bundle
}

// Bundle is the complete artifact set from one successful pipeline run.
// It is replaced wholesale and never partially updated.
type Bundle struct {
	Parse       *ParseResult
	Symbols     *SymbolTable
	Context     *Context
	FileIndex   *FileIndex
	Diagnostics []types.Diagnostic
	ContentHash [32]byte
	Version     int32
	Duration    time.Duration
}

// Result wraps the bundle for the given document identity
func (b *Bundle) Result(uri string) *Result {
	return &Result{
		URI:         uri,
		Version:     b.Version,
		Diagnostics: types.CloneDiagnostics(b.Diagnostics),
		Bundle:      b,
	}
}
