package analysis

import (
	"sync"

	"github.com/dshills/gocontext-analysis/internal/stdlib"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// Context carries everything semantic analysis needs for one file. The
// analyzer appends diagnostics to it in place.
type Context struct {
	FilePath     string
	Tree         Tree
	Symbols      *SymbolTable
	Index        ProjectIndex
	Stdlib       *stdlib.Index
	SyntaxErrors []types.Range

	mu          sync.Mutex
	diagnostics []types.Diagnostic
	references  map[string]int
}

// NewContext builds an analysis context from pipeline outputs
func NewContext(filePath string, parse *ParseResult, symbols *SymbolTable, index ProjectIndex) *Context {
	actx := &Context{
		FilePath:     filePath,
		Tree:         parse.Tree,
		Symbols:      symbols,
		Index:        index,
		SyntaxErrors: parse.ErrorRanges(),
		references:   make(map[string]int),
	}
	if index != nil {
		actx.Stdlib = index.Stdlib()
	}
	return actx
}

// Report appends a diagnostic
func (c *Context) Report(d types.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// Diagnostics returns a copy of the reported diagnostics
func (c *Context) Diagnostics() []types.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CloneDiagnostics(c.diagnostics)
}

// AddReference records a resolved cross-reference to a symbol key
func (c *Context) AddReference(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.references[key]++
}

// References returns how often each symbol key was referenced
func (c *Context) References() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.references))
	for k, v := range c.references {
		out[k] = v
	}
	return out
}
